package fileprovider

import (
	"bytes"
	"context"
	"io"
	"io/fs"
)

// FS adapts a provider to io/fs for the lifetime of ctx. Files are
// downloaded on first read and held in memory so they can seek, which
// http.FileServer needs for range requests. Seeking alone never
// downloads, so HEAD requests are answered from metadata.
func FS(ctx context.Context, p FileProvider) fs.FS {
	return &fsys{ctx: ctx, p: p}
}

type fsys struct {
	ctx context.Context
	p   FileProvider
}

var (
	_ fs.ReadDirFS = (*fsys)(nil)
	_ fs.StatFS    = (*fsys)(nil)
)

func (f *fsys) Open(name string) (fs.File, error) {
	e, err := f.stat("open", name)
	if err != nil {
		return nil, err
	}
	if e.IsDir() {
		listing, err := f.p.GetDirectoryContents(f.ctx, rel(name))
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		return &dirFile{entry: e, entries: listing.Entries()}, nil
	}
	return &file{ctx: f.ctx, entry: e}, nil
}

func (f *fsys) Stat(name string) (fs.FileInfo, error) {
	e, err := f.stat("stat", name)
	if err != nil {
		return nil, err
	}
	return e.Info(), nil
}

func (f *fsys) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	listing, err := f.p.GetDirectoryContents(f.ctx, rel(name))
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	if !listing.Exists() && name != "." {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	return dirEntries(listing.Entries()), nil
}

// stat resolves name to a file first, then to a folder. "." is the root.
func (f *fsys) stat(op, name string) (Entry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return &DirectoryEntry{name: "."}, nil
	}

	e, err := f.p.GetFileInfo(f.ctx, name)
	if err != nil {
		return nil, &fs.PathError{Op: op, Path: name, Err: err}
	}
	if e.Exists() {
		return e, nil
	}

	listing, err := f.p.GetDirectoryContents(f.ctx, name)
	if err != nil {
		return nil, &fs.PathError{Op: op, Path: name, Err: err}
	}
	if listing.Exists() {
		return NewDirectoryEntry(name), nil
	}
	return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
}

func rel(name string) string {
	if name == "." {
		return ""
	}
	return name
}

type file struct {
	ctx   context.Context
	entry Entry
	r     *bytes.Reader
	off   int64
}

func (f *file) Stat() (fs.FileInfo, error) { return f.entry.Info(), nil }
func (f *file) Close() error               { return nil }

func (f *file) load() error {
	if f.r != nil {
		return nil
	}
	rc, err := f.entry.Open(f.ctx)
	if err != nil {
		return err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	f.r = bytes.NewReader(data)
	return nil
}

// size answers from the entry metadata until the content is loaded, so
// seeking to the end does not download the file.
func (f *file) size() (int64, error) {
	if f.r == nil && f.entry.Length() >= 0 {
		return f.entry.Length(), nil
	}
	if err := f.load(); err != nil {
		return 0, err
	}
	return f.r.Size(), nil
}

func (f *file) Read(p []byte) (int, error) {
	if err := f.load(); err != nil {
		return 0, err
	}
	n, err := f.r.ReadAt(p, f.off)
	f.off += int64(n)
	if n > 0 && err == io.EOF {
		err = nil
	}
	return n, err
}

func (f *file) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.off + offset
	case io.SeekEnd:
		size, err := f.size()
		if err != nil {
			return 0, err
		}
		abs = size + offset
	default:
		return 0, &fs.PathError{Op: "seek", Path: f.entry.Name(), Err: fs.ErrInvalid}
	}
	if abs < 0 {
		return 0, &fs.PathError{Op: "seek", Path: f.entry.Name(), Err: fs.ErrInvalid}
	}
	f.off = abs
	return abs, nil
}

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	if err := f.load(); err != nil {
		return 0, err
	}
	return f.r.ReadAt(p, off)
}

type dirFile struct {
	entry   Entry
	entries []Entry
	offset  int
}

func (d *dirFile) Stat() (fs.FileInfo, error) { return d.entry.Info(), nil }
func (d *dirFile) Close() error               { return nil }

func (d *dirFile) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.entry.Name(), Err: fs.ErrInvalid}
}

func (d *dirFile) ReadDir(n int) ([]fs.DirEntry, error) {
	rest := d.entries[d.offset:]
	if n > 0 && len(rest) == 0 {
		return nil, io.EOF
	}
	if n > 0 && n < len(rest) {
		rest = rest[:n]
	}
	d.offset += len(rest)
	return dirEntries(rest), nil
}

func dirEntries(entries []Entry) []fs.DirEntry {
	out := make([]fs.DirEntry, len(entries))
	for i, e := range entries {
		out[i] = fs.FileInfoToDirEntry(e.Info())
	}
	return out
}
