package auth

import (
	"time"

	"github.com/kbukum/mediafs/validation"
)

// Signing methods accepted in Config.Method.
const (
	HS256 = "HS256"
	HS384 = "HS384"
	HS512 = "HS512"
)

// DefaultTokenTTL is the lifetime of issued tokens when none is given.
const DefaultTokenTTL = 24 * time.Hour

// Config configures token verification. Loaded from the "server.auth"
// config section.
type Config struct {
	// Enabled gates the API writes and the WebDAV mount behind a token.
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// Secret is the HMAC key shared with whoever issues tokens.
	Secret string `mapstructure:"secret" json:"-" validate:"required_if=Enabled true,omitempty,min=32"`

	// Method is the signing algorithm (default: HS256).
	Method string `mapstructure:"method" json:"method" validate:"omitempty,oneof=HS256 HS384 HS512"`

	// Issuer and Audience are checked when set.
	Issuer   string `mapstructure:"issuer" json:"issuer,omitempty"`
	Audience string `mapstructure:"audience" json:"audience,omitempty"`

	// TokenTTL is the lifetime of tokens issued by the CLI.
	TokenTTL time.Duration `mapstructure:"token_ttl" json:"token_ttl"`

	// Leeway tolerates clock skew on exp and nbf.
	Leeway time.Duration `mapstructure:"leeway" json:"leeway"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Method == "" {
		c.Method = HS256
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = DefaultTokenTTL
	}
}

// Validate checks that an enabled config carries a usable secret.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
