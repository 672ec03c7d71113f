package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kbukum/mediafs/auth"
	"github.com/kbukum/mediafs/bootstrap"
	"github.com/kbukum/mediafs/cdn"
	"github.com/kbukum/mediafs/config"
	"github.com/kbukum/mediafs/davfs"
	"github.com/kbukum/mediafs/filesystem"
	"github.com/kbukum/mediafs/observability"
	"github.com/kbukum/mediafs/server"
	"github.com/kbukum/mediafs/storage"
)

func newServeCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the media library over HTTP and WebDAV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, src, err := ro.load()
			if err != nil {
				return err
			}
			app, err := bootstrap.NewApp(cfg)
			if err != nil {
				return err
			}
			if err := wireServe(cmd.Context(), app, src); err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}

// wireServe builds the storage component, the file system, the CDN
// rewriter and the HTTP server, and registers them with app. SIGHUP and
// config file edits reload the CDN settings. With server.auth enabled, API
// writes and WebDAV require a token.
func wireServe(ctx context.Context, app *bootstrap.App[*Config], src *config.Source) error {
	cfg, log := app.Cfg, app.Logger

	shutdownTelemetry, err := observability.Init(ctx, cfg.Telemetry, log)
	if err != nil {
		return err
	}
	app.OnStop(func(ctx context.Context) error { return shutdownTelemetry(ctx) })

	metrics, err := observability.NewMetrics(observability.Meter())
	if err != nil {
		return err
	}

	store := storage.NewComponent(cfg.Storage.Config, log, func(c storage.Client) storage.Client {
		return storage.Instrument(c, cfg.Storage.Provider, log, metrics)
	})
	fs, err := filesystem.New(cfg.Storage, store, log)
	if err != nil {
		return err
	}

	rewriter, err := cdn.New(cfg.CDN, cfg.MediaPath, log)
	if err != nil {
		return err
	}
	watcher := config.NewWatcher(src, log)
	rewriter.Bind(watcher)
	app.OnReload(func(context.Context) error { return watcher.Reload() })

	opts := []server.Option{server.WithMetrics(metrics)}
	if cfg.Server.Auth.Enabled {
		tokens, err := auth.NewService(cfg.Server.Auth)
		if err != nil {
			return err
		}
		opts = append(opts, server.WithAuth(tokens.ValidatorFunc()))
	} else {
		log.Warn("server.auth is disabled: API writes and WebDAV accept anonymous requests")
	}

	srv := server.New(cfg.Server, log, opts...)
	srv.RegisterDefaultEndpoints(cfg.Name, app.Components.HealthAll)
	srv.Mount(server.Media{FS: fs, CDN: rewriter, WebDAV: davfs.New(fs, log)})

	if err := app.RegisterComponent(store); err != nil {
		return err
	}
	if err := app.RegisterComponent(watcher); err != nil {
		return err
	}
	return app.RegisterComponent(server.NewComponent(srv))
}
