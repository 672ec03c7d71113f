package storagetest

import (
	"testing"
	"time"

	"github.com/kbukum/mediafs/storage/memory"
	"github.com/kbukum/mediafs/testutil"
)

// Epoch is the fixed clock of stores built by NewMemory.
var Epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// NewMemory returns a started in-memory store with a fixed clock, stopped
// on test cleanup, and a Recorder in front of it.
func NewMemory(tb testing.TB) (*memory.Store, *Recorder) {
	tb.Helper()
	store := memory.New(memory.WithClock(func() time.Time { return Epoch }))
	testutil.T(tb).Setup(store)
	return store, NewRecorder(store)
}
