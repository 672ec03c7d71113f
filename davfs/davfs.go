// Package davfs exposes a filesystem.Adapter as a golang.org/x/net/webdav
// FileSystem, so editors and desktop clients can mount the media store.
//
// Writes are buffered in memory and uploaded when the file is closed.
// Folders only exist on the remote service while they hold assets; a folder
// made with MKCOL is remembered by this process until something is put in
// it or it is removed.
package davfs

import (
	"context"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"

	"golang.org/x/net/webdav"

	"github.com/kbukum/mediafs/errors"
	"github.com/kbukum/mediafs/filesystem"
	"github.com/kbukum/mediafs/logger"
	"github.com/kbukum/mediafs/vpath"
)

// FS implements webdav.FileSystem over the media file system.
type FS struct {
	fsys *filesystem.Adapter
	log  *logger.Logger

	mu      sync.Mutex
	pending map[string]struct{}
}

var _ webdav.FileSystem = (*FS)(nil)

// New wraps fsys.
func New(fsys *filesystem.Adapter, log *logger.Logger) *FS {
	return &FS{
		fsys:    fsys,
		log:     log.WithComponent("davfs"),
		pending: make(map[string]struct{}),
	}
}

// Handler returns a WebDAV handler mounted at prefix with an in-memory lock
// system.
func (d *FS) Handler(prefix string) *webdav.Handler {
	return &webdav.Handler{
		Prefix:     strings.TrimSuffix(prefix, "/"),
		FileSystem: d,
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				d.log.Debug("webdav request failed", logger.Fields(
					"method", r.Method,
					logger.FieldVirtualPath, r.URL.Path,
					logger.FieldError, err.Error(),
				))
			}
		},
	}
}

// clean turns a WebDAV name into a slash-rooted path below the virtual root.
func clean(name string) string {
	return path.Clean("/" + vpath.NormalizeSeparators(name))
}

// virtual maps a cleaned WebDAV name onto the adapter's virtual path space.
func (d *FS) virtual(name string) string {
	return vpath.ToPublicURL(d.fsys.Root(), name)
}

// Mkdir records an empty folder. The remote service creates folders
// implicitly, so nothing is sent until a file is added below it.
func (d *FS) Mkdir(ctx context.Context, name string, _ os.FileMode) error {
	name = clean(name)
	if name == "/" {
		return pathError("mkdir", name, fs.ErrExist)
	}
	if _, err := d.Stat(ctx, name); err == nil {
		return pathError("mkdir", name, fs.ErrExist)
	}
	parent, err := d.Stat(ctx, path.Dir(name))
	if err != nil || !parent.IsDir() {
		return pathError("mkdir", name, fs.ErrNotExist)
	}

	d.mu.Lock()
	d.pending[name] = struct{}{}
	d.mu.Unlock()
	return nil
}

// OpenFile opens name for reading, or for buffered writing when flag asks
// for write access. Creating with O_EXCL refuses to replace an existing file.
func (d *FS) OpenFile(ctx context.Context, name string, flag int, _ os.FileMode) (webdav.File, error) {
	name = clean(name)
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0 {
		if name == "/" {
			return nil, pathError("open", name, fs.ErrPermission)
		}
		parent, err := d.Stat(ctx, path.Dir(name))
		if err != nil || !parent.IsDir() {
			return nil, pathError("open", name, fs.ErrNotExist)
		}
		return newWriter(ctx, d, name, flag&os.O_EXCL == 0), nil
	}

	if name == "/" {
		return &dirHandle{ctx: ctx, d: d, name: name, info: rootInfo{}}, nil
	}
	entry, err := d.fsys.GetFileInfo(ctx, d.virtual(name))
	if err != nil {
		return nil, osError("open", name, err)
	}
	if entry.Exists() {
		return &fileHandle{ctx: ctx, entry: entry}, nil
	}
	info, err := d.Stat(ctx, name)
	if err != nil {
		return nil, err
	}
	return &dirHandle{ctx: ctx, d: d, name: name, info: info}, nil
}

// RemoveAll deletes a file, or a folder with everything under it.
func (d *FS) RemoveAll(ctx context.Context, name string) error {
	name = clean(name)
	if name == "/" {
		return pathError("remove", name, fs.ErrPermission)
	}
	info, err := d.Stat(ctx, name)
	if err != nil {
		return err
	}

	d.forget(name)
	if !info.IsDir() {
		return osError("remove", name, d.fsys.DeleteFile(ctx, d.virtual(name)))
	}
	return osError("remove", name, d.fsys.DeleteDirectory(ctx, d.virtual(name), true))
}

// Rename moves a file, or every file below a folder, to newName.
func (d *FS) Rename(ctx context.Context, oldName, newName string) error {
	oldName, newName = clean(oldName), clean(newName)
	if oldName == "/" || newName == "/" {
		return pathError("rename", oldName, fs.ErrPermission)
	}
	info, err := d.Stat(ctx, oldName)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return osError("rename", oldName, d.fsys.MoveFile(ctx, d.virtual(oldName), d.virtual(newName), true))
	}
	if strings.HasPrefix(newName+"/", oldName+"/") {
		return pathError("rename", newName, fs.ErrInvalid)
	}

	moved, err := d.moveTree(ctx, oldName, newName)
	if err != nil {
		return osError("rename", oldName, err)
	}
	if d.forget(oldName) && moved == 0 {
		d.mu.Lock()
		d.pending[newName] = struct{}{}
		d.mu.Unlock()
		return nil
	}
	if err := d.fsys.DeleteDirectory(ctx, d.virtual(oldName), true); err != nil {
		return osError("rename", oldName, err)
	}
	d.log.Info("folder renamed", logger.Fields("from", oldName, "to", newName, "files", moved))
	return nil
}

// moveTree moves the files below src to the same relative paths below dst.
func (d *FS) moveTree(ctx context.Context, src, dst string) (int, error) {
	keys, err := d.fsys.GetFiles(ctx, d.virtual(src), "")
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, key := range keys {
		leaf := vpath.LeafName(key)
		if err := d.fsys.MoveFile(ctx, d.virtual(path.Join(src, leaf)), d.virtual(path.Join(dst, leaf)), true); err != nil {
			return moved, err
		}
		moved++
	}

	dirs, err := d.fsys.GetDirectories(ctx, d.virtual(src))
	if err != nil {
		return moved, err
	}
	for _, dir := range dirs {
		leaf := vpath.LeafName(dir)
		n, err := d.moveTree(ctx, path.Join(src, leaf), path.Join(dst, leaf))
		moved += n
		if err != nil {
			return moved, err
		}
	}
	return moved, nil
}

// Stat reports a file, a remote folder, or a folder made with Mkdir.
func (d *FS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	name = clean(name)
	if name == "/" {
		return rootInfo{}, nil
	}

	entry, err := d.fsys.GetFileInfo(ctx, d.virtual(name))
	if err != nil {
		return nil, osError("stat", name, err)
	}
	if entry.Exists() {
		return fileInfo{entry.Info()}, nil
	}

	ok, err := d.fsys.DirectoryExists(ctx, d.virtual(name))
	if err != nil {
		return nil, osError("stat", name, err)
	}
	if ok {
		return dirInfo(path.Base(name)), nil
	}
	if d.isPending(name) {
		return dirInfo(path.Base(name)), nil
	}
	return nil, pathError("stat", name, fs.ErrNotExist)
}

func (d *FS) isPending(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[name]
	return ok
}

// forget drops name and every pending folder below it. It reports whether
// name itself was pending.
func (d *FS) forget(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, found := d.pending[name]
	for p := range d.pending {
		if p == name || strings.HasPrefix(p, name+"/") {
			delete(d.pending, p)
		}
	}
	return found
}

// settle drops the pending marks of name's ancestors once a file exists
// below them.
func (d *FS) settle(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for dir := path.Dir(name); dir != "/"; dir = path.Dir(dir) {
		delete(d.pending, dir)
	}
}

func pathError(op, name string, err error) error {
	return &fs.PathError{Op: op, Path: name, Err: err}
}

// osError maps adapter errors onto the fs errors the WebDAV handler turns
// into status codes.
func osError(op, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.IsCode(err, errors.ErrCodeNotFound):
		return pathError(op, name, fs.ErrNotExist)
	case errors.IsCode(err, errors.ErrCodeAlreadyExists):
		return pathError(op, name, fs.ErrExist)
	case errors.IsCode(err, errors.ErrCodeUnsupported):
		return pathError(op, name, fs.ErrPermission)
	case errors.IsCode(err, errors.ErrCodeInvalidArgument):
		return pathError(op, name, fs.ErrInvalid)
	default:
		return pathError(op, name, err)
	}
}
