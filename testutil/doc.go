// Package testutil adds test-only lifecycle hooks to components.
//
//	func TestUpload(t *testing.T) {
//	    store := memory.New()
//	    h := testutil.T(t)
//	    h.Setup(store)
//	    snap := h.Snapshot(store)
//	    ...
//	    h.Restore(store, snap)
//	}
package testutil
