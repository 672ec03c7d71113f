package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/mediafs/component"
	"github.com/kbukum/mediafs/logger"
	"github.com/kbukum/mediafs/server"
	"github.com/kbukum/mediafs/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Component serves a server.Server through httptest.Server. It implements
// both component.Component and testutil.TestComponent.
type Component struct {
	cfg   server.Config
	media server.Media
	opts  []server.Option
	log   *logger.Logger

	mu      sync.RWMutex
	srv     *server.Server
	ts      *httptest.Server
	started bool
}

var _ component.Component = (*Component)(nil)
var _ testutil.TestComponent = (*Component)(nil)

// NewComponent creates a test server that mounts media on Start. opts are
// passed to server.New.
func NewComponent(cfg server.Config, media server.Media, opts ...server.Option) *Component {
	cfg.Host, cfg.Port = "127.0.0.1", 0
	return &Component{cfg: cfg, media: media, opts: opts, log: logger.Nop()}
}

// Server returns the current *server.Server, nil before Start.
func (c *Component) Server() *server.Server {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.srv
}

// BaseURL returns the test server's base URL (e.g. "http://127.0.0.1:PORT").
// Returns empty string if not started.
func (c *Component) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ts == nil {
		return ""
	}
	return c.ts.URL
}

// --- component.Component ---

func (c *Component) Name() string { return "server-test" }

func (c *Component) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("component already started")
	}
	c.serve()
	c.started = true
	return nil
}

func (c *Component) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || c.ts == nil {
		return nil
	}
	c.ts.Close()
	c.ts = nil
	c.started = false
	return nil
}

func (c *Component) Health(_ context.Context) component.Health {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.started {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// --- testutil.TestComponent ---

// Reset recreates the server with a fresh Gin engine and routes.
func (c *Component) Reset(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return fmt.Errorf("component not started")
	}
	c.ts.Close()
	c.serve()
	return nil
}

// Snapshot is a no-op: the server keeps no state of its own.
func (c *Component) Snapshot(_ context.Context) (any, error) {
	return nil, nil
}

// Restore is a no-op.
func (c *Component) Restore(_ context.Context, _ any) error {
	return nil
}

// serve builds the server and starts httptest; callers hold mu.
func (c *Component) serve() {
	c.srv = server.New(c.cfg, c.log, c.opts...)
	c.srv.RegisterDefaultEndpoints("mediafs-test", nil)
	c.srv.Mount(c.media)
	c.ts = httptest.NewServer(c.srv.Handler())
}
