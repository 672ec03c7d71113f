package storage

import (
	"time"
)

// Provider constants for supported storage backends.
const (
	ProviderCloudinary = "cloudinary"
	ProviderS3         = "s3"
	ProviderMemory     = "memory"
)

// Cloudinary folder modes. In dynamic mode the asset folder is independent
// of the public ID; in fixed mode the folder is the public ID's prefix.
const (
	FolderModeDynamic = "dynamic"
	FolderModeFixed   = "fixed"
)

// Default configuration values.
const (
	DefaultProvider     = ProviderCloudinary
	DefaultRegion       = "us-east-1"
	DefaultResourceType = "image"
	DefaultFolderMode   = FolderModeDynamic
	DefaultMaxFolders   = 500
	DefaultTimeout      = 30 * time.Second
)

// Config holds the credentials and backend selection for the remote
// asset service. The four identity fields are required for every provider;
// for S3, Cloud names the bucket and APIKey/APISecret are static credentials.
type Config struct {
	Provider  string `mapstructure:"provider" json:"provider" validate:"omitempty,oneof=cloudinary s3 memory"`
	Cloud     string `mapstructure:"cloud" json:"cloud" validate:"required"`
	APIKey    string `mapstructure:"api_key" json:"api_key" validate:"required"`
	APISecret string `mapstructure:"api_secret" json:"-" validate:"required"`

	// Region is the AWS region (s3 only).
	Region string `mapstructure:"region" json:"region"`

	// Endpoint overrides the service base URL: an S3-compatible endpoint
	// such as MinIO, or a Cloudinary API proxy.
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`

	// ResourceType is the Cloudinary resource type addressed by keys.
	ResourceType string `mapstructure:"resource_type" json:"resource_type" validate:"omitempty,oneof=image video raw"`

	// FolderMode is the Cloudinary folder mode of the cloud: dynamic or fixed.
	FolderMode string `mapstructure:"folder_mode" json:"folder_mode" validate:"omitempty,oneof=dynamic fixed"`

	// MaxFolders bounds root folder listings.
	MaxFolders int `mapstructure:"max_folders" json:"max_folders" validate:"gte=0"`

	// Timeout bounds a single HTTP call to the remote API.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`

	// RequestsPerSecond throttles Admin API calls when positive.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" json:"requests_per_second"`

	// Retries enables retrying idempotent reads on transient failures.
	Retries int `mapstructure:"retries" json:"retries" validate:"gte=0"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.ResourceType == "" {
		c.ResourceType = DefaultResourceType
	}
	if c.FolderMode == "" {
		c.FolderMode = DefaultFolderMode
	}
	if c.MaxFolders == 0 {
		c.MaxFolders = DefaultMaxFolders
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}
