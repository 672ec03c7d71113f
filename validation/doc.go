// Package validation checks configuration and request structs using
// go-playground/validator struct tags and reports failures as
// INVALID_ARGUMENT AppErrors with per-field details.
//
//	type Options struct {
//	    Cloud       string `mapstructure:"cloud" validate:"required"`
//	    VirtualPath string `mapstructure:"virtual_path" validate:"required,virtualroot"`
//	}
//	err := validation.Validate(opts)
package validation
