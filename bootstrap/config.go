package bootstrap

import (
	"github.com/kbukum/mediafs/config"
)

// Config is the interface constraint for application configuration types.
// Any struct that embeds config.ServiceConfig (value embedding) satisfies
// the accessor through promotion; ApplyDefaults and Validate are usually
// overridden to cover the service's own sections.
//
// Example:
//
//	type Config struct {
//	    config.ServiceConfig `mapstructure:",squash"`
//	    Storage filesystem.Options `mapstructure:"storage"`
//	}
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
