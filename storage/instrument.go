package storage

import (
	"context"
	"io"
	"time"

	"github.com/kbukum/mediafs/logger"
	"github.com/kbukum/mediafs/observability"
)

// Instrument decorates a client so that every remote call gets a span,
// operation metrics and a debug log line. metrics may be nil.
func Instrument(inner Client, provider string, log *logger.Logger, metrics *observability.Metrics) Client {
	return &instrumented{
		inner:    inner,
		provider: provider,
		log:      log.WithComponent("storage"),
		metrics:  metrics,
	}
}

type instrumented struct {
	inner    Client
	provider string
	log      *logger.Logger
	metrics  *observability.Metrics
}

func (c *instrumented) observe(ctx context.Context, op, key string, fn func(context.Context) error) error {
	ctx, span := observability.StartSpan(ctx, "storage."+op)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrOperationName, op)
	observability.SetSpanAttribute(ctx, AttrProvider, c.provider)
	observability.SetSpanAttribute(ctx, AttrStorageKey, key)

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	fields := logger.Fields(
		logger.FieldOperation, op,
		logger.FieldStorageKey, key,
		logger.FieldProvider, c.provider,
		logger.FieldDuration, duration.Milliseconds(),
	)
	status := "ok"
	if err != nil {
		status = "error"
		reason := Reason(err)
		observability.SetSpanError(ctx, err)
		fields[logger.FieldError] = err.Error()
		fields["reason"] = reason
		c.log.Warn("remote call failed", fields)
		if c.metrics != nil {
			c.metrics.RecordError(ctx, reason, "storage."+c.provider)
		}
	} else {
		c.log.Debug("remote call ok", fields)
	}
	if c.metrics != nil {
		c.metrics.RecordOperation(ctx, c.provider, op, status, duration)
	}
	return err
}

// Span attribute keys.
const (
	AttrProvider   = "storage.provider"
	AttrStorageKey = "storage.key"
)

func (c *instrumented) ListFolders(ctx context.Context, parent string, maxResults int) (out []Folder, err error) {
	err = c.observe(ctx, "list_folders", parent, func(ctx context.Context) error {
		out, err = c.inner.ListFolders(ctx, parent, maxResults)
		return err
	})
	return out, err
}

func (c *instrumented) ListResources(ctx context.Context, folder string) (out []Resource, err error) {
	err = c.observe(ctx, "list_resources", folder, func(ctx context.Context) error {
		out, err = c.inner.ListResources(ctx, folder)
		return err
	})
	return out, err
}

func (c *instrumented) ListAllResources(ctx context.Context) (out []Resource, err error) {
	err = c.observe(ctx, "list_all_resources", "", func(ctx context.Context) error {
		out, err = c.inner.ListAllResources(ctx)
		return err
	})
	return out, err
}

func (c *instrumented) GetResource(ctx context.Context, key string) (out *Resource, err error) {
	err = c.observe(ctx, "get_resource", key, func(ctx context.Context) error {
		out, err = c.inner.GetResource(ctx, key)
		return err
	})
	return out, err
}

func (c *instrumented) Upload(ctx context.Context, key string, content io.Reader, overwrite bool) (out *Resource, err error) {
	err = c.observe(ctx, "upload", key, func(ctx context.Context) error {
		out, err = c.inner.Upload(ctx, key, content, overwrite)
		return err
	})
	return out, err
}

func (c *instrumented) Download(ctx context.Context, key string) (out io.ReadCloser, err error) {
	err = c.observe(ctx, "download", key, func(ctx context.Context) error {
		out, err = c.inner.Download(ctx, key)
		return err
	})
	return out, err
}

func (c *instrumented) DeleteResource(ctx context.Context, key string) error {
	return c.observe(ctx, "delete_resource", key, func(ctx context.Context) error {
		return c.inner.DeleteResource(ctx, key)
	})
}

func (c *instrumented) DeleteFolder(ctx context.Context, path string) error {
	return c.observe(ctx, "delete_folder", path, func(ctx context.Context) error {
		return c.inner.DeleteFolder(ctx, path)
	})
}

// Ping forwards to the inner client when it can be pinged.
func (c *instrumented) Ping(ctx context.Context) error {
	p, ok := c.inner.(Pinger)
	if !ok {
		return nil
	}
	return c.observe(ctx, "ping", "", p.Ping)
}

// Close forwards to the inner client when it holds resources.
func (c *instrumented) Close() error {
	if closer, ok := c.inner.(Closer); ok {
		return closer.Close()
	}
	return nil
}
