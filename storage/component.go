package storage

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/kbukum/mediafs/component"
	"github.com/kbukum/mediafs/errors"
	"github.com/kbukum/mediafs/logger"
)

// Component wraps a Client for lifecycle management.
type Component struct {
	cfg    Config
	log    *logger.Logger
	wrap   func(Client) Client
	mu     sync.RWMutex
	client Client
}

var _ component.Component = (*Component)(nil)
var _ component.Describable = (*Component)(nil)
var _ Client = (*Component)(nil)

// NewComponent creates a storage component. wrap, if non-nil, decorates the
// client once it is built (see Instrument).
func NewComponent(cfg Config, log *logger.Logger, wrap func(Client) Client) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("storage"), wrap: wrap}
}

// Client returns the started client, or an error client that reports
// SERVICE_UNAVAILABLE when the component is not running.
func (c *Component) Client() Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil {
		return unavailable{}
	}
	return c.client
}

// Name returns the component name.
func (c *Component) Name() string { return "storage" }

// Start builds the backend client.
func (c *Component) Start(_ context.Context) error {
	client, err := New(c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("storage start: %w", err)
	}
	if c.wrap != nil {
		client = c.wrap(client)
	}
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	return nil
}

// Stop releases the client.
func (c *Component) Stop(_ context.Context) error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()
	if closer, ok := client.(Closer); ok {
		return closer.Close()
	}
	return nil
}

// Health pings the remote service when the client supports it.
func (c *Component) Health(ctx context.Context) component.Health {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "storage not initialized"}
	}
	if p, ok := client.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return component.Health{
				Name:    c.Name(),
				Status:  component.StatusDegraded,
				Message: fmt.Sprintf("ping failed: %s", Reason(err)),
			}
		}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe returns a one-line summary for startup logs.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Storage",
		Type:    "storage",
		Details: fmt.Sprintf("provider=%s cloud=%s", c.cfg.Provider, c.cfg.Cloud),
	}
}

// The Client methods forward to the running client, so a Component can be
// handed to consumers before it is started.

func (c *Component) ListFolders(ctx context.Context, parent string, maxResults int) ([]Folder, error) {
	return c.Client().ListFolders(ctx, parent, maxResults)
}

func (c *Component) ListResources(ctx context.Context, folder string) ([]Resource, error) {
	return c.Client().ListResources(ctx, folder)
}

func (c *Component) ListAllResources(ctx context.Context) ([]Resource, error) {
	return c.Client().ListAllResources(ctx)
}

func (c *Component) GetResource(ctx context.Context, key string) (*Resource, error) {
	return c.Client().GetResource(ctx, key)
}

func (c *Component) Upload(ctx context.Context, key string, content io.Reader, overwrite bool) (*Resource, error) {
	return c.Client().Upload(ctx, key, content, overwrite)
}

func (c *Component) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	return c.Client().Download(ctx, key)
}

func (c *Component) DeleteResource(ctx context.Context, key string) error {
	return c.Client().DeleteResource(ctx, key)
}

func (c *Component) DeleteFolder(ctx context.Context, path string) error {
	return c.Client().DeleteFolder(ctx, path)
}

// unavailable stands in for the client before Start and after Stop.
type unavailable struct{}

func (unavailable) err() error { return errors.ServiceUnavailable("storage") }

func (u unavailable) ListFolders(context.Context, string, int) ([]Folder, error) {
	return nil, u.err()
}
func (u unavailable) ListResources(context.Context, string) ([]Resource, error) { return nil, u.err() }
func (u unavailable) ListAllResources(context.Context) ([]Resource, error)      { return nil, u.err() }
func (u unavailable) GetResource(context.Context, string) (*Resource, error)    { return nil, u.err() }
func (u unavailable) Download(context.Context, string) (io.ReadCloser, error)   { return nil, u.err() }
func (u unavailable) DeleteResource(context.Context, string) error              { return u.err() }
func (u unavailable) DeleteFolder(context.Context, string) error                { return u.err() }
func (u unavailable) Upload(context.Context, string, io.Reader, bool) (*Resource, error) {
	return nil, u.err()
}
