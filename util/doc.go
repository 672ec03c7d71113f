// Package util holds small helpers shared by the server and the CLI:
// human-readable byte sizes and secret masking for config output.
package util
