package cdn

import (
	"net/url"
	"strings"

	"github.com/kbukum/mediafs/errors"
	"github.com/kbukum/mediafs/validation"
)

// Options configures the CDN rewrite. Loaded from the "cdn" config section.
type Options struct {
	// Enabled turns the rewrite on. A disabled rewriter passes URLs through.
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// URL is prepended verbatim to the rewritten path, so a trailing slash
	// is significant.
	URL string `mapstructure:"url" json:"url" validate:"required_if=Enabled true,omitempty,url"`

	// RemoveMediaFromPath strips the media root from URLs before joining.
	RemoveMediaFromPath bool `mapstructure:"remove_media_from_path" json:"remove_media_from_path"`
}

// DefaultOptions returns the options used when the config leaves a field
// unset.
func DefaultOptions() Options {
	return Options{RemoveMediaFromPath: true}
}

// Defaults are the config-loader defaults for the "cdn" section.
func Defaults() map[string]any {
	return map[string]any{
		"cdn.enabled":                false,
		"cdn.remove_media_from_path": true,
	}
}

// Validate checks that an enabled CDN has an absolute URL. When the media
// root is kept, a host-only URL must end in a slash or the first path
// segment would be glued onto the host name.
func (o *Options) Validate() error {
	if err := validation.Validate(o); err != nil {
		return err
	}
	if !o.Enabled || o.RemoveMediaFromPath || strings.HasSuffix(o.URL, "/") {
		return nil
	}
	if u, err := url.Parse(o.URL); err == nil && u.Path == "" && u.RawQuery == "" && u.Fragment == "" {
		return errors.InvalidArgument("url", "a host-only url must end with / when remove_media_from_path is false")
	}
	return nil
}
