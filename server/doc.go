// Package server is the HTTP front of mediafs. It serves asset bytes at the
// virtual root, a small JSON API for listing and managing files, and an
// optional WebDAV mount, on one Gin engine behind h2c.
//
// # Middleware
//
// Applied to every request, including WebDAV (server/middleware):
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: X-Request-Id generation and propagation
//   - RequestLogger: request logging with duration tracking
//   - Metrics: OpenTelemetry request counters and latency
//   - CORS: cross-origin resource sharing
//   - BodySizeLimit: request body size limits
//   - Uploads: a bulkhead capping concurrent PUTs
//
// # Endpoints
//
//   - GET|HEAD {virtual_path}/*file: asset bytes
//   - /api/v1/files, /api/v1/files/info, /api/v1/directories, /api/v1/url
//   - {webdav_prefix}/: WebDAV
//   - /health, /info
package server
