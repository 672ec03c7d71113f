package fileprovider

// ChangeToken signals that watched content changed.
type ChangeToken interface {
	HasChanged() bool
	ActiveChangeCallbacks() bool
	// RegisterChangeCallback registers fn and returns a function that
	// unregisters it.
	RegisterChangeCallback(fn func()) (unregister func())
}

// NullChangeToken never changes. Remote assets are not watched.
var NullChangeToken ChangeToken = nullChangeToken{}

type nullChangeToken struct{}

func (nullChangeToken) HasChanged() bool                     { return false }
func (nullChangeToken) ActiveChangeCallbacks() bool          { return false }
func (nullChangeToken) RegisterChangeCallback(func()) func() { return func() {} }
