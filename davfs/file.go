package davfs

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/webdav"

	"github.com/kbukum/mediafs/fileprovider"
	"github.com/kbukum/mediafs/logger"
)

// writer buffers a PUT body and uploads it on Close.
type writer struct {
	ctx       context.Context
	d         *FS
	name      string
	overwrite bool
	id        string
	buf       bytes.Buffer
	closed    bool
}

func newWriter(ctx context.Context, d *FS, name string, overwrite bool) *writer {
	return &writer{ctx: ctx, d: d, name: name, overwrite: overwrite, id: uuid.NewString()}
}

func (w *writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fs.ErrClosed
	}
	return w.buf.Write(p)
}

func (w *writer) Close() error {
	if w.closed {
		return fs.ErrClosed
	}
	w.closed = true

	size := w.buf.Len()
	if err := w.d.fsys.AddFile(w.ctx, w.d.virtual(w.name), bytes.NewReader(w.buf.Bytes()), w.overwrite); err != nil {
		return osError("close", w.name, err)
	}
	w.d.settle(w.name)
	w.d.log.Debug("webdav upload stored", logger.Fields(
		"upload_id", w.id,
		logger.FieldVirtualPath, w.name,
		"bytes", size,
	))
	return nil
}

func (w *writer) Read([]byte) (int, error) { return 0, pathError("read", w.name, fs.ErrInvalid) }

func (w *writer) Seek(offset int64, whence int) (int64, error) {
	if offset == 0 && (whence == io.SeekCurrent || whence == io.SeekEnd) {
		return int64(w.buf.Len()), nil
	}
	return 0, pathError("seek", w.name, fs.ErrInvalid)
}

func (w *writer) Readdir(int) ([]fs.FileInfo, error) {
	return nil, pathError("readdir", w.name, fs.ErrInvalid)
}

func (w *writer) Stat() (fs.FileInfo, error) {
	return stagedInfo{name: path.Base(w.name), size: int64(w.buf.Len())}, nil
}

// fileHandle reads a remote file. The content is fetched on first access and
// held in memory so the handler can seek for range requests.
type fileHandle struct {
	ctx   context.Context
	entry fileprovider.Entry
	r     *bytes.Reader
}

func (f *fileHandle) load() error {
	if f.r != nil {
		return nil
	}
	rc, err := f.entry.Open(f.ctx)
	if err != nil {
		return osError("read", f.entry.Name(), err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	f.r = bytes.NewReader(data)
	return nil
}

func (f *fileHandle) Read(p []byte) (int, error) {
	if err := f.load(); err != nil {
		return 0, err
	}
	return f.r.Read(p)
}

func (f *fileHandle) Seek(offset int64, whence int) (int64, error) {
	if err := f.load(); err != nil {
		return 0, err
	}
	return f.r.Seek(offset, whence)
}

func (f *fileHandle) Write([]byte) (int, error) {
	return 0, pathError("write", f.entry.Name(), fs.ErrPermission)
}

func (f *fileHandle) Readdir(int) ([]fs.FileInfo, error) {
	return nil, pathError("readdir", f.entry.Name(), fs.ErrInvalid)
}

func (f *fileHandle) Stat() (fs.FileInfo, error) { return fileInfo{f.entry.Info()}, nil }
func (f *fileHandle) Close() error               { return nil }

// dirHandle lists a folder. The listing is read once and paged by Readdir.
type dirHandle struct {
	ctx     context.Context
	d       *FS
	name    string
	info    fs.FileInfo
	entries []fs.FileInfo
	loaded  bool
	off     int
}

func (h *dirHandle) Readdir(count int) ([]fs.FileInfo, error) {
	if !h.loaded {
		listing, err := h.d.fsys.GetDirectoryContents(h.ctx, h.d.virtual(h.name))
		if err != nil {
			return nil, osError("readdir", h.name, err)
		}
		for e := range listing.All() {
			if e.IsDir() {
				h.entries = append(h.entries, dirInfo(e.Name()))
			} else {
				h.entries = append(h.entries, fileInfo{e.Info()})
			}
		}
		h.loaded = true
	}

	rest := h.entries[h.off:]
	if count <= 0 {
		h.off = len(h.entries)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	if count > len(rest) {
		count = len(rest)
	}
	h.off += count
	return rest[:count], nil
}

func (h *dirHandle) Stat() (fs.FileInfo, error) { return h.info, nil }
func (h *dirHandle) Close() error               { return nil }

func (h *dirHandle) Read([]byte) (int, error) {
	return 0, pathError("read", h.name, fs.ErrInvalid)
}

func (h *dirHandle) Seek(int64, int) (int64, error) {
	return 0, pathError("seek", h.name, fs.ErrInvalid)
}

func (h *dirHandle) Write([]byte) (int, error) {
	return 0, pathError("write", h.name, fs.ErrPermission)
}

// fileInfo adds a content type derived from the file extension, so PROPFIND
// does not download files to sniff them.
type fileInfo struct{ fs.FileInfo }

func (i fileInfo) ContentType(context.Context) (string, error) {
	if ct := mime.TypeByExtension(path.Ext(i.Name())); ct != "" {
		return ct, nil
	}
	return "", webdav.ErrNotImplemented
}

type dirInfo string

func (d dirInfo) Name() string       { return string(d) }
func (d dirInfo) Size() int64        { return 0 }
func (d dirInfo) Mode() fs.FileMode  { return fs.ModeDir | 0o755 }
func (d dirInfo) ModTime() time.Time { return time.Time{} }
func (d dirInfo) IsDir() bool        { return true }
func (d dirInfo) Sys() any           { return nil }

type rootInfo struct{}

func (rootInfo) Name() string       { return "/" }
func (rootInfo) Size() int64        { return 0 }
func (rootInfo) Mode() fs.FileMode  { return fs.ModeDir | 0o755 }
func (rootInfo) ModTime() time.Time { return time.Time{} }
func (rootInfo) IsDir() bool        { return true }
func (rootInfo) Sys() any           { return nil }

type stagedInfo struct {
	name string
	size int64
}

func (s stagedInfo) Name() string       { return s.name }
func (s stagedInfo) Size() int64        { return s.size }
func (s stagedInfo) Mode() fs.FileMode  { return 0o644 }
func (s stagedInfo) ModTime() time.Time { return time.Now() }
func (s stagedInfo) IsDir() bool        { return false }
func (s stagedInfo) Sys() any           { return nil }

var (
	_ webdav.File = (*writer)(nil)
	_ webdav.File = (*fileHandle)(nil)
	_ webdav.File = (*dirHandle)(nil)
	_ os.FileInfo = rootInfo{}
)
