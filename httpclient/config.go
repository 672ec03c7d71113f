package httpclient

import (
	"fmt"
	"time"

	"github.com/kbukum/mediafs/resilience"
)

const defaultTimeout = 30 * time.Second

// Config configures the HTTP adapter.
type Config struct {
	// Name identifies the adapter in resilience callbacks.
	Name string

	// BaseURL is prepended to relative request paths.
	BaseURL string

	// Timeout bounds a single buffered request. Defaults to 30s.
	// Streaming requests rely on the context instead.
	Timeout time.Duration

	// Auth is applied to every request unless the request overrides it.
	Auth *AuthConfig

	// Headers are default headers applied to all requests.
	Headers map[string]string

	// Retry retries GET and HEAD requests. Nil disables retry.
	Retry *resilience.RetryConfig

	// CircuitBreaker fails fast after repeated failures. Nil disables it.
	CircuitBreaker *resilience.CircuitBreakerConfig

	// RateLimiter throttles outgoing requests. Nil disables it.
	RateLimiter *resilience.RateLimiterConfig
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Name == "" {
		c.Name = "httpclient"
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	if c.Retry != nil && c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("httpclient: retry max attempts must be at least 1")
	}
	return nil
}

// DefaultRetryConfig returns a retry config that only retries transient
// HTTP failures.
func DefaultRetryConfig(attempts int) *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = attempts
	cfg.RetryIf = IsRetryable
	return &cfg
}
