package testutil

import (
	"context"

	"github.com/kbukum/mediafs/component"
)

// TestComponent is a component whose state tests can reset, capture and
// roll back.
type TestComponent interface {
	component.Component

	// Reset returns the component to its freshly started state.
	Reset(ctx context.Context) error
	// Snapshot captures the current state for a later Restore.
	Snapshot(ctx context.Context) (any, error)
	// Restore rolls back to a value returned by Snapshot.
	Restore(ctx context.Context, snapshot any) error
}
