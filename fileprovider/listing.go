package fileprovider

import (
	"iter"
	"slices"

	"github.com/kbukum/mediafs/storage"
)

// DirectoryListing is the content of one folder: subfolders first, then
// files, each group in the order the remote service returned it.
type DirectoryListing struct {
	entries []Entry
}

// NotFoundDirectory is the shared listing for empty or missing folders.
var NotFoundDirectory = &DirectoryListing{}

// NewDirectoryListing builds a listing. open yields the content opener for
// a resource key.
func NewDirectoryListing(folders []storage.Folder, resources []storage.Resource, open func(key string) Opener) *DirectoryListing {
	if len(folders) == 0 && len(resources) == 0 {
		return NotFoundDirectory
	}

	entries := make([]Entry, 0, len(folders)+len(resources))
	for _, f := range folders {
		entries = append(entries, NewDirectoryEntry(f.Path))
	}
	for _, r := range resources {
		var opener Opener
		if open != nil {
			opener = open(r.Key)
		}
		entries = append(entries, NewFileEntry(r, opener))
	}
	return &DirectoryListing{entries: entries}
}

// Exists reports whether the listing has any entry.
func (l *DirectoryListing) Exists() bool { return len(l.entries) > 0 }

// Len is the number of entries.
func (l *DirectoryListing) Len() int { return len(l.entries) }

// Entries returns a copy of the entries.
func (l *DirectoryListing) Entries() []Entry { return slices.Clone(l.entries) }

// All iterates the entries in listing order.
func (l *DirectoryListing) All() iter.Seq[Entry] {
	return slices.Values(l.entries)
}
