package fileprovider

import (
	"context"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/kbukum/mediafs/errors"
	"github.com/kbukum/mediafs/storage"
	"github.com/kbukum/mediafs/vpath"
)

// Entry is one item of a directory listing: a *FileEntry or a
// *DirectoryEntry.
type Entry interface {
	Name() string
	Exists() bool
	IsDir() bool
	// Length is the size in bytes, -1 for directories.
	Length() int64
	LastModified() time.Time
	// Open streams the content. Directories refuse.
	Open(ctx context.Context) (io.ReadCloser, error)
	// Info adapts the entry to fs.FileInfo.
	Info() fs.FileInfo

	entry()
}

// Opener streams the content behind a file entry.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// FileEntry describes a remote resource.
type FileEntry struct {
	name     string
	key      string
	exists   bool
	length   int64
	created  time.Time
	modified time.Time
	open     Opener
}

// NewFileEntry builds the entry for a resource record. The name is the leaf
// of the resource's display path.
func NewFileEntry(res storage.Resource, open Opener) *FileEntry {
	return &FileEntry{
		name:     vpath.LeafName(res.DisplayPath()),
		key:      res.Key,
		exists:   true,
		length:   res.Bytes,
		created:  res.CreatedAt,
		modified: res.LastModified(),
		open:     open,
	}
}

// NotFoundFile is the entry reported for a path with no resource.
func NotFoundFile(name string) *FileEntry {
	return &FileEntry{name: name}
}

func (f *FileEntry) entry() {}

func (f *FileEntry) Name() string            { return f.name }
func (f *FileEntry) Exists() bool            { return f.exists }
func (f *FileEntry) IsDir() bool             { return false }
func (f *FileEntry) Length() int64           { return f.length }
func (f *FileEntry) LastModified() time.Time { return f.modified }

// Created is the resource creation time.
func (f *FileEntry) Created() time.Time { return f.created }

// Key is the storage key the entry was read from, "" when it does not exist.
func (f *FileEntry) Key() string { return f.key }

// Open downloads the resource.
func (f *FileEntry) Open(ctx context.Context) (io.ReadCloser, error) {
	if !f.exists || f.open == nil {
		return nil, errors.NotFound("file", f.name)
	}
	return f.open(ctx)
}

func (f *FileEntry) Info() fs.FileInfo { return entryInfo{f} }

// DirectoryEntry describes a remote folder.
type DirectoryEntry struct {
	name string
	path string
}

// NewDirectoryEntry builds the entry for a folder path or prefix. A
// trailing slash is ignored.
func NewDirectoryEntry(prefix string) *DirectoryEntry {
	p := strings.TrimSuffix(vpath.NormalizeSeparators(prefix), "/")
	return &DirectoryEntry{name: vpath.LeafName(p), path: p}
}

func (d *DirectoryEntry) entry() {}

func (d *DirectoryEntry) Name() string            { return d.name }
func (d *DirectoryEntry) Exists() bool            { return true }
func (d *DirectoryEntry) IsDir() bool             { return true }
func (d *DirectoryEntry) Length() int64           { return -1 }
func (d *DirectoryEntry) LastModified() time.Time { return time.Time{} }

// Path is the folder path the entry was built from.
func (d *DirectoryEntry) Path() string { return d.path }

// Open always fails: a folder has no content stream.
func (d *DirectoryEntry) Open(context.Context) (io.ReadCloser, error) {
	return nil, errors.UnsupportedOperation("open", "Cannot open a directory as a file.")
}

func (d *DirectoryEntry) Info() fs.FileInfo { return entryInfo{d} }

type entryInfo struct{ e Entry }

func (i entryInfo) Name() string       { return i.e.Name() }
func (i entryInfo) ModTime() time.Time { return i.e.LastModified() }
func (i entryInfo) IsDir() bool        { return i.e.IsDir() }
func (i entryInfo) Sys() any           { return i.e }

func (i entryInfo) Size() int64 {
	if i.e.IsDir() {
		return 0
	}
	return i.e.Length()
}

func (i entryInfo) Mode() fs.FileMode {
	if i.e.IsDir() {
		return fs.ModeDir | 0o555
	}
	return 0o444
}
