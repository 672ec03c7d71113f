package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"time"
)

// ErrAlreadyExists is returned by Upload when overwrite is false and the key
// is taken. Backends enforce it with the remote service's conditional write.
var ErrAlreadyExists = errors.New("storage: resource already exists")

// ErrNotFound is returned by Download for a missing key.
var ErrNotFound = errors.New("storage: resource not found")

// Folder is a folder known to the remote service.
type Folder struct {
	// Name is the last segment of Path.
	Name string `json:"name"`
	// Path is the full folder path, without leading or trailing slashes.
	Path string `json:"path"`
}

// Resource is the remote service's record for one stored asset.
type Resource struct {
	// Key addresses the resource (a Cloudinary public ID, an S3 object key).
	Key string `json:"key"`
	// Folder is the folder the resource is filed under, "" at the root.
	Folder string `json:"folder"`
	// DisplayName is the human-facing file name, including any extension.
	DisplayName  string    `json:"display_name"`
	Format       string    `json:"format,omitempty"`
	ResourceType string    `json:"resource_type,omitempty"`
	Bytes        int64     `json:"bytes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	// URL is the delivery URL reported by the service, if any.
	URL string `json:"url,omitempty"`
}

// DisplayPath is the folder-qualified display name, falling back to Key.
func (r *Resource) DisplayPath() string {
	if r.DisplayName == "" {
		return r.Key
	}
	if r.Folder == "" {
		return r.DisplayName
	}
	return path.Join(r.Folder, r.DisplayName)
}

// LastModified returns UpdatedAt, or CreatedAt for never-updated resources.
func (r *Resource) LastModified() time.Time {
	if r.UpdatedAt.IsZero() {
		return r.CreatedAt
	}
	return r.UpdatedAt
}

// Client is the remote asset-service contract. All keys and folder paths are
// already-resolved storage keys: no leading slash, no virtual root. Clients
// must be safe for concurrent use and paginate internally as they see fit.
type Client interface {
	// ListFolders returns the direct subfolders of parent ("" for the root),
	// at most maxResults of them when maxResults > 0.
	ListFolders(ctx context.Context, parent string, maxResults int) ([]Folder, error)

	// ListResources returns the resources filed directly in folder.
	ListResources(ctx context.Context, folder string) ([]Resource, error)

	// ListAllResources returns every resource the account holds.
	ListAllResources(ctx context.Context) ([]Resource, error)

	// GetResource returns the resource at key, or nil, nil if there is none.
	GetResource(ctx context.Context, key string) (*Resource, error)

	// Upload stores content at key. With overwrite false an existing key
	// yields ErrAlreadyExists.
	Upload(ctx context.Context, key string, content io.Reader, overwrite bool) (*Resource, error)

	// Download streams the bytes stored at key. The caller closes the reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// DeleteResource removes the resource at key. Missing keys are not an error.
	DeleteResource(ctx context.Context, key string) error

	// DeleteFolder removes a folder and everything filed under it.
	DeleteFolder(ctx context.Context, path string) error
}

// Pinger is optionally implemented by clients that can check the remote
// service cheaply. Component.Health uses it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Closer is optionally implemented by clients holding connections.
type Closer interface {
	Close() error
}
