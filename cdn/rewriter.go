// Package cdn rewrites relative media URLs onto a CDN host.
//
// The rewriter reads one immutable snapshot per call. Changing the options
// or the media root swaps in a new snapshot, so a rewrite never mixes old
// and new settings.
package cdn

import (
	"strings"
	"sync/atomic"

	"github.com/kbukum/mediafs/config"
	"github.com/kbukum/mediafs/logger"
	"github.com/kbukum/mediafs/vpath"
)

type snapshot struct {
	enabled     bool
	url         string
	removeMedia bool
	mediaRoot   string
}

// URLMode tells whether a resolved media URL is a real URL.
type URLMode int

const (
	// ModeURL is a resolvable URL and is rewritten.
	ModeURL URLMode = iota
	// ModeNone carries a message instead of a URL.
	ModeNone
	// ModeDataURI is an inline data: URI.
	ModeDataURI
)

// MediaURL is a media URL as resolved by the CMS.
type MediaURL struct {
	Text    string
	Mode    URLMode
	Culture string
}

// Rewriter rewrites media URLs. It is safe for concurrent use.
type Rewriter struct {
	snap atomic.Pointer[snapshot]
	log  *logger.Logger
}

// MediaRoot normalizes a hosting media path to the prefix form matched by
// Rewrite: "~/media" becomes "/media/".
func MediaRoot(p string) string {
	return vpath.NormalizeRoot(p) + "/"
}

// New validates opts and creates a rewriter for the given media path.
func New(opts Options, mediaPath string, log *logger.Logger) (*Rewriter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	r := &Rewriter{log: log.WithComponent("cdn")}
	r.snap.Store(&snapshot{
		enabled:     opts.Enabled,
		url:         opts.URL,
		removeMedia: opts.RemoveMediaFromPath,
		mediaRoot:   MediaRoot(mediaPath),
	})
	return r, nil
}

func (r *Rewriter) update(fn func(*snapshot)) {
	for {
		old := r.snap.Load()
		next := *old
		fn(&next)
		if r.snap.CompareAndSwap(old, &next) {
			return
		}
	}
}

// SetOptions validates opts and swaps them in. The media root is kept.
func (r *Rewriter) SetOptions(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	r.update(func(s *snapshot) {
		s.enabled = opts.Enabled
		s.url = opts.URL
		s.removeMedia = opts.RemoveMediaFromPath
	})
	return nil
}

// SetMediaPath swaps in a new media root. The CDN options are kept.
func (r *Rewriter) SetMediaPath(p string) {
	root := MediaRoot(p)
	r.update(func(s *snapshot) { s.mediaRoot = root })
}

// Enabled reports whether rewriting is on.
func (r *Rewriter) Enabled() bool { return r.snap.Load().enabled }

// MediaRootPath returns the current media root prefix.
func (r *Rewriter) MediaRootPath() string { return r.snap.Load().mediaRoot }

// Rewrite joins the CDN URL and relativeURL by plain concatenation. The
// media root, when removal is on and it prefixes the URL (ignoring case),
// or else a single leading slash, is dropped first.
func (r *Rewriter) Rewrite(relativeURL string) string {
	s := r.snap.Load()
	if !s.enabled {
		return relativeURL
	}

	start := 0
	switch {
	case s.removeMedia && len(relativeURL) >= len(s.mediaRoot) && strings.EqualFold(relativeURL[:len(s.mediaRoot)], s.mediaRoot):
		start = len(s.mediaRoot)
	case strings.HasPrefix(relativeURL, "/"):
		start = 1
	}
	return s.url + relativeURL[start:]
}

// Apply rewrites a resolved media URL. nil and non-URL results are returned
// unchanged.
func (r *Rewriter) Apply(u *MediaURL) *MediaURL {
	if u == nil || u.Mode != ModeURL {
		return u
	}
	return &MediaURL{Text: r.Rewrite(u.Text), Mode: ModeURL, Culture: u.Culture}
}

// Subscriber delivers reloaded configuration. *config.Watcher implements it.
type Subscriber interface {
	Subscribe(fn func(*config.Source))
}

// Bind applies the "cdn" section and the "media_path" key on every reload.
// An invalid CDN section is logged and the current options are kept.
func (r *Rewriter) Bind(sub Subscriber) {
	sub.Subscribe(func(src *config.Source) {
		opts := DefaultOptions()
		if err := src.UnmarshalKey("cdn", &opts); err != nil {
			r.log.Warn("cdn config unreadable, keeping previous", logger.Fields(logger.FieldError, err.Error()))
		} else if err := r.SetOptions(opts); err != nil {
			r.log.Warn("cdn config invalid, keeping previous", logger.Fields(logger.FieldError, err.Error()))
		} else {
			r.log.Info("cdn config reloaded", logger.Fields("enabled", opts.Enabled, "url", opts.URL))
		}

		if p := src.GetString("media_path"); p != "" {
			r.SetMediaPath(p)
		}
	})
}
