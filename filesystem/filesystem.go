package filesystem

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"time"

	"github.com/kbukum/mediafs/errors"
	"github.com/kbukum/mediafs/fileprovider"
	"github.com/kbukum/mediafs/logger"
	"github.com/kbukum/mediafs/storage"
	"github.com/kbukum/mediafs/vpath"
)

// FileSystem is the file-system contract a CMS media layer expects.
type FileSystem interface {
	GetFileInfo(ctx context.Context, path string) (fileprovider.Entry, error)
	FileExists(ctx context.Context, path string) (bool, error)
	GetDirectoryContents(ctx context.Context, path string) (*fileprovider.DirectoryListing, error)
	AddFile(ctx context.Context, path string, content io.Reader, overwrite bool) error
	DeleteFile(ctx context.Context, path string) error
	DeleteDirectory(ctx context.Context, path string, recursive bool) error
	GetDirectories(ctx context.Context, path string) ([]string, error)
	DirectoryExists(ctx context.Context, path string) (bool, error)
	GetFiles(ctx context.Context, path, filter string) ([]string, error)
	OpenFile(ctx context.Context, path string) (io.ReadCloser, error)
	CopyFile(ctx context.Context, src, dst string, overwrite bool) error
	MoveFile(ctx context.Context, src, dst string, overwrite bool) error
	GetURL(path string) string
	GetFullPath(path string) string
	GetRelativePath(fullPathOrURL string) string
	GetLastModified(ctx context.Context, path string) (time.Time, error)
	GetCreated(ctx context.Context, path string) (time.Time, error)
	GetSize(ctx context.Context, path string) (int64, error)
	CanAddPhysical() bool
}

// Adapter implements FileSystem over a storage.Client. It holds no mutable
// state and is safe for concurrent use.
type Adapter struct {
	client     storage.Client
	root       string
	maxFolders int
	provider   *fileprovider.Provider
	log        *logger.Logger
}

var _ FileSystem = (*Adapter)(nil)

// New validates opts and binds client to the virtual root.
func New(opts Options, client storage.Client, log *logger.Logger) (*Adapter, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	l := log.WithComponent("filesystem")
	root := opts.Root()
	a := &Adapter{
		client:     client,
		root:       root,
		maxFolders: opts.MaxFolders,
		provider:   fileprovider.NewProvider(client, root, log, fileprovider.WithMaxFolders(opts.MaxFolders)),
		log:        l,
	}
	l.Info("file system ready", logger.Fields(logger.FieldVirtualPath, root, logger.FieldProvider, opts.Provider))
	return a, nil
}

// Root is the normalized virtual root.
func (a *Adapter) Root() string { return a.root }

// Provider returns the read-only file provider over the same client.
func (a *Adapter) Provider() *fileprovider.Provider { return a.provider }

// CanAddPhysical is always false: there is no local disk to add from.
func (a *Adapter) CanAddPhysical() bool { return false }

func (a *Adapter) key(path string) string {
	return vpath.ToStorageKey(a.root, path)
}

func requirePath(param, path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.InvalidArgument(param, "must not be blank")
	}
	return nil
}

// GetFileInfo returns the entry at path. A missing file, including the
// root, is a NotFoundFile entry rather than an error.
func (a *Adapter) GetFileInfo(ctx context.Context, path string) (fileprovider.Entry, error) {
	key := a.key(path)
	if key == "" {
		return fileprovider.NotFoundFile(vpath.LeafName(path)), nil
	}
	res, err := a.client.GetResource(ctx, key)
	if err != nil {
		return nil, storage.Translate("get_file_info", key, err)
	}
	if res == nil {
		return fileprovider.NotFoundFile(vpath.LeafName(path)), nil
	}
	return fileprovider.NewFileEntry(*res, a.provider.Opener(key)), nil
}

// FileExists reports whether a resource is stored at path.
func (a *Adapter) FileExists(ctx context.Context, path string) (bool, error) {
	if err := requirePath("path", path); err != nil {
		return false, err
	}
	res, err := a.resource(ctx, "file_exists", path)
	if err != nil {
		return false, err
	}
	return res != nil, nil
}

// GetDirectoryContents lists the folder at path.
func (a *Adapter) GetDirectoryContents(ctx context.Context, path string) (*fileprovider.DirectoryListing, error) {
	return a.provider.ListKey(ctx, a.key(path))
}

// AddFile uploads content to path. With overwrite false an existing file
// yields ALREADY_EXISTS and is left untouched.
func (a *Adapter) AddFile(ctx context.Context, path string, content io.Reader, overwrite bool) error {
	if err := requirePath("path", path); err != nil {
		return err
	}
	if content == nil {
		return errors.InvalidArgument("content", "must not be nil")
	}

	key := a.key(path)
	res, err := a.client.Upload(ctx, key, content, overwrite)
	if err != nil {
		return storage.Translate("add_file", key, err)
	}

	fields := logger.Fields(logger.FieldVirtualPath, path, logger.FieldStorageKey, key, "overwrite", overwrite)
	if res != nil {
		fields["bytes"] = res.Bytes
	}
	a.log.Info("file added", fields)
	return nil
}

// DeleteFile removes the file at path. Deleting a missing file succeeds.
func (a *Adapter) DeleteFile(ctx context.Context, path string) error {
	if err := requirePath("path", path); err != nil {
		return err
	}
	key := a.key(path)
	if err := a.client.DeleteResource(ctx, key); err != nil {
		return storage.Translate("delete_file", key, err)
	}
	a.log.Info("file deleted", logger.Fields(logger.FieldVirtualPath, path, logger.FieldStorageKey, key))
	return nil
}

// DeleteDirectory removes the folder at path with everything under it.
// The remote service only deletes recursively, so recursive is ignored.
func (a *Adapter) DeleteDirectory(ctx context.Context, path string, recursive bool) error {
	if err := requirePath("path", path); err != nil {
		return err
	}
	key := a.key(path)
	if key == "" {
		return errors.UnsupportedOperation("delete_directory", "The virtual root cannot be deleted.")
	}
	if err := a.client.DeleteFolder(ctx, key); err != nil {
		return storage.Translate("delete_directory", key, err)
	}
	a.log.Info("directory deleted", logger.Fields(
		logger.FieldVirtualPath, path,
		logger.FieldStorageKey, key,
		"recursive", recursive,
	))
	return nil
}

// GetDirectories returns the folder paths directly under path. The root
// listing is bounded by the configured folder limit.
func (a *Adapter) GetDirectories(ctx context.Context, path string) ([]string, error) {
	folders, err := a.folders(ctx, "get_directories", a.key(path))
	if err != nil {
		return nil, err
	}
	out := make([]string, len(folders))
	for i, f := range folders {
		out[i] = f.Path
	}
	return out, nil
}

func (a *Adapter) folders(ctx context.Context, op, key string) ([]storage.Folder, error) {
	limit := 0
	if key == "" {
		limit = a.maxFolders
	}
	folders, err := a.client.ListFolders(ctx, key, limit)
	if err != nil {
		if storage.Reason(err) == storage.ReasonNotFound {
			return nil, nil
		}
		return nil, storage.Translate(op, key, err)
	}
	return folders, nil
}

// DirectoryExists reports whether path names a folder. The root always
// exists. Otherwise the folder must be listed by its parent or hold files.
func (a *Adapter) DirectoryExists(ctx context.Context, path string) (bool, error) {
	key := a.key(path)
	if key == "" {
		return true, nil
	}

	folders, err := a.folders(ctx, "directory_exists", vpath.Parent(key))
	if err != nil {
		return false, err
	}
	for _, f := range folders {
		if f.Path == key {
			return true, nil
		}
	}

	resources, err := a.client.ListResources(ctx, key)
	if err != nil {
		return false, storage.Translate("directory_exists", key, err)
	}
	return len(resources) > 0, nil
}

// GetFiles returns the storage keys of the files directly under path whose
// key contains filter, ignoring case and leading wildcards. An empty
// filter or "*.*" matches everything.
func (a *Adapter) GetFiles(ctx context.Context, path, filter string) ([]string, error) {
	key := a.key(path)
	resources, err := a.client.ListResources(ctx, key)
	if err != nil {
		return nil, storage.Translate("get_files", key, err)
	}

	match := strings.ToLower(strings.TrimLeft(filter, "*"))
	if filter == "*.*" {
		match = ""
	}

	out := make([]string, 0, len(resources))
	for _, r := range resources {
		if match == "" || strings.Contains(strings.ToLower(r.Key), match) {
			out = append(out, r.Key)
		}
	}
	return out, nil
}

// OpenFile streams the file at path. The caller closes the reader.
func (a *Adapter) OpenFile(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := requirePath("path", path); err != nil {
		return nil, err
	}
	key := a.key(path)
	rc, err := a.client.Download(ctx, key)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NotFound("file", path)
		}
		return nil, storage.Translate("open_file", key, err)
	}
	return rc, nil
}

// CopyFile copies src to dst through this process.
func (a *Adapter) CopyFile(ctx context.Context, src, dst string, overwrite bool) error {
	if err := requirePath("src", src); err != nil {
		return err
	}
	if err := requirePath("dst", dst); err != nil {
		return err
	}
	if a.key(src) == a.key(dst) {
		return nil
	}

	rc, err := a.OpenFile(ctx, src)
	if err != nil {
		return err
	}
	defer rc.Close()
	return a.AddFile(ctx, dst, rc, overwrite)
}

// MoveFile copies src to dst, then deletes src.
func (a *Adapter) MoveFile(ctx context.Context, src, dst string, overwrite bool) error {
	if err := a.CopyFile(ctx, src, dst, overwrite); err != nil {
		return err
	}
	if a.key(src) == a.key(dst) {
		return nil
	}
	return a.DeleteFile(ctx, src)
}

// GetURL is the public URL of path under the virtual root.
func (a *Adapter) GetURL(path string) string {
	return vpath.ToPublicURL(a.root, path)
}

// GetFullPath is path under the virtual root, without surrounding slashes.
func (a *Adapter) GetFullPath(path string) string {
	return vpath.ToFullPath(a.root, path)
}

// GetRelativePath strips the virtual root from a full path or URL.
func (a *Adapter) GetRelativePath(fullPathOrURL string) string {
	return vpath.ToStorageKey(a.root, fullPathOrURL)
}

// GetLastModified returns the last update time, or the creation time for
// files never updated.
func (a *Adapter) GetLastModified(ctx context.Context, path string) (time.Time, error) {
	res, err := a.requireResource(ctx, "get_last_modified", path)
	if err != nil {
		return time.Time{}, err
	}
	return res.LastModified(), nil
}

// GetCreated returns the creation time of the file at path.
func (a *Adapter) GetCreated(ctx context.Context, path string) (time.Time, error) {
	res, err := a.requireResource(ctx, "get_created", path)
	if err != nil {
		return time.Time{}, err
	}
	return res.CreatedAt, nil
}

// GetSize returns the size in bytes of the file at path.
func (a *Adapter) GetSize(ctx context.Context, path string) (int64, error) {
	res, err := a.requireResource(ctx, "get_size", path)
	if err != nil {
		return 0, err
	}
	return res.Bytes, nil
}

func (a *Adapter) resource(ctx context.Context, op, path string) (*storage.Resource, error) {
	key := a.key(path)
	if key == "" {
		return nil, nil
	}
	res, err := a.client.GetResource(ctx, key)
	if err != nil {
		return nil, storage.Translate(op, key, err)
	}
	return res, nil
}

func (a *Adapter) requireResource(ctx context.Context, op, path string) (*storage.Resource, error) {
	if err := requirePath("path", path); err != nil {
		return nil, err
	}
	res, err := a.resource(ctx, op, path)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.NotFound("file", path)
	}
	return res, nil
}
