package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/mediafs/bootstrap"
	"github.com/kbukum/mediafs/config"
	"github.com/kbukum/mediafs/filesystem"
	"github.com/kbukum/mediafs/storage"
)

type rootOptions struct {
	configFile string
	envFile    string
	timeout    time.Duration
	verbose    bool
}

func newRootCmd() *cobra.Command {
	ro := &rootOptions{}
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Serve and manage a remote media library as a file system",
		SilenceUsage: true,
	}
	f := cmd.PersistentFlags()
	f.StringVarP(&ro.configFile, "config", "c", "", "config file (default: ./config.yml or ./config/config.yml)")
	f.StringVar(&ro.envFile, "env-file", "", ".env file to load before reading the environment")
	f.DurationVar(&ro.timeout, "timeout", 2*time.Minute, "time limit for file commands")
	f.BoolVarP(&ro.verbose, "verbose", "v", false, "log storage calls to stderr")

	cmd.AddCommand(
		newServeCmd(ro),
		newLsCmd(ro),
		newDirsCmd(ro),
		newStatCmd(ro),
		newPutCmd(ro),
		newRmCmd(ro),
		newURLCmd(ro),
		newConfigCmd(ro),
		newTokenCmd(ro),
		newVersionCmd(),
	)
	return cmd
}

// load reads the config file, .env and MEDIAFS_* variables.
func (ro *rootOptions) load() (*Config, *config.Source, error) {
	opts := []config.LoaderOption{config.WithDefaults(defaults())}
	if ro.configFile != "" {
		opts = append(opts, config.WithConfigFile(ro.configFile))
	}
	if ro.envFile != "" {
		opts = append(opts, config.WithEnvFile(ro.envFile))
	}

	var cfg Config
	src, err := config.Load(serviceName, &cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return &cfg, src, nil
}

// runFiles runs task against the configured store with the storage
// component started for its duration. Logs go to stderr so command output
// stays clean.
func (ro *rootOptions) runFiles(cmd *cobra.Command, task func(ctx context.Context, fs *filesystem.Adapter, cfg *Config) error) error {
	cfg, _, err := ro.load()
	if err != nil {
		return err
	}
	cfg.Logging.Output = "stderr"
	if !ro.verbose {
		cfg.Logging.Level = "warn"
	}

	app, err := bootstrap.NewApp(cfg, bootstrap.WithSummaryOutput(nil))
	if err != nil {
		return err
	}
	store := storage.NewComponent(cfg.Storage.Config, app.Logger, nil)
	if err := app.RegisterComponent(store); err != nil {
		return err
	}
	fs, err := filesystem.New(cfg.Storage, store, app.Logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), ro.timeout)
	defer cancel()
	return app.RunTask(ctx, func(ctx context.Context) error {
		return task(ctx, fs, cfg)
	})
}
