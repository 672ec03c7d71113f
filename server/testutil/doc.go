// Package testutil provides an httptest-backed server component for tests
// that need the full mediafs HTTP surface over a real socket.
package testutil
