package server

import (
	"fmt"
	"strings"

	"github.com/kbukum/mediafs/auth"
	"github.com/kbukum/mediafs/server/middleware"
)

// Config holds HTTP server configuration. Loaded from the "server" section.
type Config struct {
	Host         string                `yaml:"host" mapstructure:"host"`
	Port         int                   `yaml:"port" mapstructure:"port"`
	ReadTimeout  int                   `yaml:"read_timeout" mapstructure:"read_timeout"`   // seconds
	WriteTimeout int                   `yaml:"write_timeout" mapstructure:"write_timeout"` // seconds
	IdleTimeout  int                   `yaml:"idle_timeout" mapstructure:"idle_timeout"`   // seconds
	MaxBodySize  string                `yaml:"max_body_size" mapstructure:"max_body_size"` // e.g. "100MB"
	CORS         middleware.CORSConfig `yaml:"cors" mapstructure:"cors"`

	// WebDAV mounts the media store for desktop clients under WebDAVPrefix.
	WebDAV       bool   `yaml:"webdav" mapstructure:"webdav"`
	WebDAVPrefix string `yaml:"webdav_prefix" mapstructure:"webdav_prefix"`

	// MaxUploads caps concurrent uploads across the API and WebDAV.
	MaxUploads int `yaml:"max_uploads" mapstructure:"max_uploads"`
	// UploadWait is how long an upload queues for a slot, in seconds.
	UploadWait int `yaml:"upload_wait" mapstructure:"upload_wait"`

	// Auth guards API writes and the WebDAV mount with a bearer token.
	Auth auth.Config `yaml:"auth" mapstructure:"auth"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 60
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "100MB"
	}
	if c.WebDAVPrefix == "" {
		c.WebDAVPrefix = "/webdav"
	}
	if c.MaxUploads == 0 {
		c.MaxUploads = 8
	}
	c.Auth.ApplyDefaults()
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = []string{"GET", "HEAD", "PUT", "DELETE", "OPTIONS"}
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = []string{"Origin", "Content-Type", "Accept", "Range", "Authorization"}
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535 (got: %d)", c.Port)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 {
		return fmt.Errorf("server timeouts must be non-negative")
	}
	if c.MaxUploads < 0 {
		return fmt.Errorf("server.max_uploads must be non-negative (got: %d)", c.MaxUploads)
	}
	if c.WebDAV && !strings.HasPrefix(c.WebDAVPrefix, "/") {
		return fmt.Errorf("server.webdav_prefix must start with / (got: %q)", c.WebDAVPrefix)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("server.auth: %w", err)
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
