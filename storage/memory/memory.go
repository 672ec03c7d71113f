// Package memory is an in-process storage backend. It models remote
// folders the way Cloudinary does: folders appear when something is
// uploaded beneath them and stay until they are deleted explicitly.
// It doubles as a testutil.TestComponent.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/mediafs/component"
	"github.com/kbukum/mediafs/errors"
	"github.com/kbukum/mediafs/logger"
	"github.com/kbukum/mediafs/storage"
	"github.com/kbukum/mediafs/testutil"
	"github.com/kbukum/mediafs/vpath"
)

func init() {
	storage.RegisterFactory(storage.ProviderMemory, func(cfg storage.Config, log *logger.Logger) (storage.Client, error) {
		s := New(WithBaseURL("mem://" + cfg.Cloud))
		if err := s.Start(context.Background()); err != nil {
			return nil, err
		}
		return s, nil
	})
}

type object struct {
	data      []byte
	createdAt time.Time
	updatedAt time.Time
}

type state struct {
	objects map[string]*object
	folders map[string]struct{}
}

func (s state) clone() state {
	out := state{
		objects: make(map[string]*object, len(s.objects)),
		folders: make(map[string]struct{}, len(s.folders)),
	}
	for k, o := range s.objects {
		cp := *o
		cp.data = slices.Clone(o.data)
		out.objects[k] = &cp
	}
	for f := range s.folders {
		out.folders[f] = struct{}{}
	}
	return out
}

// Store is the in-memory client.
type Store struct {
	mu      sync.RWMutex
	st      state
	started bool
	now     func() time.Time
	baseURL string
}

var (
	_ storage.Client         = (*Store)(nil)
	_ storage.Pinger         = (*Store)(nil)
	_ testutil.TestComponent = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for CreatedAt/UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithBaseURL sets the prefix of the URL reported on resources.
func WithBaseURL(u string) Option {
	return func(s *Store) { s.baseURL = strings.TrimRight(u, "/") }
}

// New creates a store. It must be started before use.
func New(opts ...Option) *Store {
	s := &Store{now: time.Now, baseURL: "mem://local"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed uploads data at key with fixed timestamps. It is meant for tests.
func (s *Store) Seed(key string, data []byte, created, updated time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.st.objects[key] = &object{data: slices.Clone(data), createdAt: created, updatedAt: updated}
	s.addAncestors(key)
}

// AddFolder creates an empty folder and its ancestors.
func (s *Store) AddFolder(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	p = strings.Trim(p, "/")
	for ; p != ""; p = vpath.Parent(p) {
		s.st.folders[p] = struct{}{}
	}
}

// --- component.Component ---

func (s *Store) Name() string { return "storage-memory" }

func (s *Store) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("memory storage already started")
	}
	s.st = state{objects: map[string]*object{}, folders: map[string]struct{}{}}
	s.started = true
	return nil
}

func (s *Store) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = state{}
	s.started = false
	return nil
}

func (s *Store) Health(context.Context) component.Health {
	if err := s.Ping(context.Background()); err != nil {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: s.Name(), Status: component.StatusHealthy}
}

// Ping fails while the store is stopped.
func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.check()
}

// Close implements storage.Closer.
func (s *Store) Close() error {
	return s.Stop(context.Background())
}

// --- testutil.TestComponent ---

func (s *Store) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.st = state{objects: map[string]*object{}, folders: map[string]struct{}{}}
	return nil
}

func (s *Store) Snapshot(context.Context) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.st.clone(), nil
}

func (s *Store) Restore(_ context.Context, snap any) error {
	st, ok := snap.(state)
	if !ok {
		return fmt.Errorf("invalid snapshot type %T", snap)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.st = st.clone()
	return nil
}

// --- storage.Client ---

func (s *Store) ListFolders(ctx context.Context, parent string, maxResults int) ([]storage.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	parent = strings.Trim(parent, "/")
	var out []storage.Folder
	for f := range s.st.folders {
		if vpath.Parent(f) == parent {
			out = append(out, storage.Folder{Name: vpath.LeafName(f), Path: f})
		}
	}
	slices.SortFunc(out, func(a, b storage.Folder) int { return strings.Compare(a.Path, b.Path) })
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

func (s *Store) ListResources(ctx context.Context, folder string) ([]storage.Resource, error) {
	folder = strings.Trim(folder, "/")
	return s.list(ctx, func(key string) bool { return vpath.Parent(key) == folder })
}

func (s *Store) ListAllResources(ctx context.Context) ([]storage.Resource, error) {
	return s.list(ctx, func(string) bool { return true })
}

func (s *Store) list(ctx context.Context, match func(string) bool) ([]storage.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	var out []storage.Resource
	for key, o := range s.st.objects {
		if match(key) {
			out = append(out, s.resource(key, o))
		}
	}
	slices.SortFunc(out, func(a, b storage.Resource) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

func (s *Store) GetResource(ctx context.Context, key string) (*storage.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	o, ok := s.st.objects[key]
	if !ok {
		return nil, nil
	}
	r := s.resource(key, o)
	return &r, nil
}

// Upload reads content before taking the lock, then checks and sets the
// key atomically.
func (s *Store) Upload(ctx context.Context, key string, content io.Reader, overwrite bool) (*storage.Resource, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	o, exists := s.st.objects[key]
	switch {
	case exists && !overwrite:
		return nil, storage.ErrAlreadyExists
	case exists:
		o.data, o.updatedAt = data, now
	default:
		o = &object{data: data, createdAt: now, updatedAt: now}
		s.st.objects[key] = o
		s.addAncestors(key)
	}
	r := s.resource(key, o)
	return &r, nil
}

func (s *Store) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	o, ok := s.st.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(slices.Clone(o.data))), nil
}

func (s *Store) DeleteResource(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ctx); err != nil {
		return err
	}
	delete(s.st.objects, key)
	return nil
}

func (s *Store) DeleteFolder(ctx context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ctx); err != nil {
		return err
	}
	p = strings.Trim(p, "/")
	under := func(k string) bool { return p == "" || k == p || strings.HasPrefix(k, p+"/") }
	for k := range s.st.objects {
		if under(k) {
			delete(s.st.objects, k)
		}
	}
	for f := range s.st.folders {
		if under(f) {
			delete(s.st.folders, f)
		}
	}
	return nil
}

// --- helpers; callers hold mu ---

func (s *Store) check() error {
	if !s.started {
		return errors.ServiceUnavailable("memory storage")
	}
	return nil
}

func (s *Store) guard(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.check()
}

func (s *Store) addAncestors(key string) {
	for f := vpath.Parent(key); f != ""; f = vpath.Parent(f) {
		s.st.folders[f] = struct{}{}
	}
}

func (s *Store) resource(key string, o *object) storage.Resource {
	name := vpath.LeafName(key)
	return storage.Resource{
		Key:          key,
		Folder:       vpath.Parent(key),
		DisplayName:  name,
		Format:       strings.TrimPrefix(path.Ext(name), "."),
		ResourceType: "raw",
		Bytes:        int64(len(o.data)),
		CreatedAt:    o.createdAt,
		UpdatedAt:    o.updatedAt,
		URL:          s.baseURL + "/" + key,
	}
}
