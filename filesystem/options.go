package filesystem

import (
	"github.com/kbukum/mediafs/storage"
	"github.com/kbukum/mediafs/validation"
	"github.com/kbukum/mediafs/vpath"
)

// Options binds a remote account to a virtual root. Loaded from the
// "storage" config section.
type Options struct {
	storage.Config `mapstructure:",squash"`

	// VirtualPath is where the assets are mounted, e.g. "/media" or "~/media".
	VirtualPath string `mapstructure:"virtual_path" json:"virtual_path" validate:"required,virtualroot"`
}

// ApplyDefaults fills in zero-valued fields.
func (o *Options) ApplyDefaults() {
	o.Config.ApplyDefaults()
}

// Validate checks required fields.
func (o *Options) Validate() error {
	return validation.Validate(o)
}

// Root is the normalized virtual root.
func (o *Options) Root() string {
	return vpath.NormalizeRoot(o.VirtualPath)
}
