// Package config loads service configuration from a YAML file, an optional
// .env file and prefixed environment variables using viper, and watches
// the file for changes.
//
//	var cfg Config
//	src, err := config.Load("mediafs", &cfg, config.WithConfigFile(path))
//	w := config.NewWatcher(src, log)
//	w.Subscribe(func(s *config.Source) { ... })
//
// Environment variables win over file values. With the default prefix,
// MEDIAFS_STORAGE_API_KEY sets storage.api_key.
package config
