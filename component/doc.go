// Package component defines the lifecycle contract shared by the storage
// client, the HTTP server and the config watcher, and a Registry that
// starts them in order and stops them in reverse.
package component
