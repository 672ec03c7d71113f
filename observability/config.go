package observability

import (
	"fmt"
	"time"
)

// Config configures OTLP export for traces and metrics.
type Config struct {
	Enabled        bool   `mapstructure:"enabled" json:"enabled"`
	ServiceName    string `mapstructure:"service_name" json:"service_name"`
	ServiceVersion string `mapstructure:"service_version" json:"service_version"`
	Environment    string `mapstructure:"environment" json:"environment"`

	// Endpoint is the OTLP HTTP endpoint host:port.
	Endpoint   string        `mapstructure:"endpoint" json:"endpoint"`
	Insecure   bool          `mapstructure:"insecure" json:"insecure"`
	SampleRate float64       `mapstructure:"sample_rate" json:"sample_rate"`
	Interval   time.Duration `mapstructure:"interval" json:"interval"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "mediafs"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "dev"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.Interval <= 0 {
		c.Interval = 15 * time.Second
	}
}

// Validate checks the sampling rate.
func (c *Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("telemetry: sample_rate must be between 0 and 1, got %v", c.SampleRate)
	}
	return nil
}
