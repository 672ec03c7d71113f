package main

import (
	stderrors "errors"
	"maps"

	"github.com/kbukum/mediafs/cdn"
	"github.com/kbukum/mediafs/config"
	"github.com/kbukum/mediafs/filesystem"
	"github.com/kbukum/mediafs/observability"
	"github.com/kbukum/mediafs/server"
)

const serviceName = "mediafs"

// Config is the mediafs configuration file.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Storage   filesystem.Options   `yaml:"storage" mapstructure:"storage" json:"storage"`
	CDN       cdn.Options          `yaml:"cdn" mapstructure:"cdn" json:"cdn"`
	MediaPath string               `yaml:"media_path" mapstructure:"media_path" json:"media_path"`
	Server    server.Config        `yaml:"server" mapstructure:"server" json:"server"`
	Telemetry observability.Config `yaml:"telemetry" mapstructure:"telemetry" json:"telemetry"`
}

// defaults seeds the loader so env-only deployments get a usable config.
func defaults() map[string]any {
	d := map[string]any{
		"name":                 serviceName,
		"media_path":           "~/media",
		"storage.provider":     "cloudinary",
		"storage.virtual_path": "/media",
		"server.webdav":        true,
	}
	maps.Copy(d, cdn.Defaults())
	return d
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Server.ApplyDefaults()
	if c.MediaPath == "" {
		c.MediaPath = c.Storage.VirtualPath
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = c.Name
	}
	if c.Telemetry.ServiceVersion == "" {
		c.Telemetry.ServiceVersion = c.Version
	}
	if c.Telemetry.Environment == "" {
		c.Telemetry.Environment = c.Environment
	}
	c.Telemetry.ApplyDefaults()
}

// Validate reports every invalid section at once.
func (c *Config) Validate() error {
	return stderrors.Join(
		c.ServiceConfig.Validate(),
		c.Storage.Validate(),
		c.CDN.Validate(),
		c.Server.Validate(),
		c.Telemetry.Validate(),
	)
}
