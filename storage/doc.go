// Package storage defines the remote asset-service client that the mediafs
// file system is built on, plus the plumbing shared by every backend:
// a factory registry, configuration, lifecycle component, error
// classification and an instrumenting decorator.
//
// # Backends
//
//   - storage/cloudinary: Cloudinary Admin and Upload APIs
//   - storage/s3: Amazon S3 and S3-compatible services
//   - storage/memory: in-process map, for development and tests
//
// Backends register themselves from init, so the binary must import the
// packages it wants to offer:
//
//	import _ "github.com/kbukum/mediafs/storage/cloudinary"
//
// # Configuration
//
//	storage:
//	  provider: cloudinary
//	  cloud: my-cloud
//	  api_key: "..."
//	  api_secret: "..."
package storage
