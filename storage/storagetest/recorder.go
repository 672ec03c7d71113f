// Package storagetest provides a storage.Client decorator for tests that
// counts remote calls and injects failures per operation.
package storagetest

import (
	"context"
	"io"
	"sync"

	"github.com/kbukum/mediafs/storage"
)

// Operation names used by Recorder.
const (
	OpListFolders      = "list_folders"
	OpListResources    = "list_resources"
	OpListAllResources = "list_all_resources"
	OpGetResource      = "get_resource"
	OpUpload           = "upload"
	OpDownload         = "download"
	OpDeleteResource   = "delete_resource"
	OpDeleteFolder     = "delete_folder"
)

// Recorder wraps a client, counting calls per operation. Operations named
// in FailOn return the configured error without reaching the inner client.
type Recorder struct {
	inner storage.Client

	mu     sync.Mutex
	calls  map[string]int
	keys   map[string][]string
	failOn map[string]error
}

var _ storage.Client = (*Recorder)(nil)

// NewRecorder wraps inner.
func NewRecorder(inner storage.Client) *Recorder {
	return &Recorder{
		inner:  inner,
		calls:  make(map[string]int),
		keys:   make(map[string][]string),
		failOn: make(map[string]error),
	}
}

// FailOn makes op return err until cleared with a nil err.
func (r *Recorder) FailOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failOn, op)
		return
	}
	r.failOn[op] = err
}

// Calls returns how many times op was invoked.
func (r *Recorder) Calls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

// Total returns the number of calls across all operations.
func (r *Recorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

// Keys returns the keys or folder paths op was invoked with, in order.
func (r *Recorder) Keys(op string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys[op]...)
}

func (r *Recorder) record(op, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[op]++
	r.keys[op] = append(r.keys[op], key)
	return r.failOn[op]
}

func (r *Recorder) ListFolders(ctx context.Context, parent string, maxResults int) ([]storage.Folder, error) {
	if err := r.record(OpListFolders, parent); err != nil {
		return nil, err
	}
	return r.inner.ListFolders(ctx, parent, maxResults)
}

func (r *Recorder) ListResources(ctx context.Context, folder string) ([]storage.Resource, error) {
	if err := r.record(OpListResources, folder); err != nil {
		return nil, err
	}
	return r.inner.ListResources(ctx, folder)
}

func (r *Recorder) ListAllResources(ctx context.Context) ([]storage.Resource, error) {
	if err := r.record(OpListAllResources, ""); err != nil {
		return nil, err
	}
	return r.inner.ListAllResources(ctx)
}

func (r *Recorder) GetResource(ctx context.Context, key string) (*storage.Resource, error) {
	if err := r.record(OpGetResource, key); err != nil {
		return nil, err
	}
	return r.inner.GetResource(ctx, key)
}

func (r *Recorder) Upload(ctx context.Context, key string, content io.Reader, overwrite bool) (*storage.Resource, error) {
	if err := r.record(OpUpload, key); err != nil {
		return nil, err
	}
	return r.inner.Upload(ctx, key, content, overwrite)
}

func (r *Recorder) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := r.record(OpDownload, key); err != nil {
		return nil, err
	}
	return r.inner.Download(ctx, key)
}

func (r *Recorder) DeleteResource(ctx context.Context, key string) error {
	if err := r.record(OpDeleteResource, key); err != nil {
		return err
	}
	return r.inner.DeleteResource(ctx, key)
}

func (r *Recorder) DeleteFolder(ctx context.Context, path string) error {
	if err := r.record(OpDeleteFolder, path); err != nil {
		return err
	}
	return r.inner.DeleteFolder(ctx, path)
}
