package fileprovider_test

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"github.com/kbukum/mediafs/errors"
	"github.com/kbukum/mediafs/fileprovider"
	"github.com/kbukum/mediafs/logger"
	"github.com/kbukum/mediafs/storage"
	"github.com/kbukum/mediafs/storage/storagetest"
)

var (
	created  = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	modified = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
)

func newProvider(t *testing.T) (*fileprovider.Provider, *storagetest.Recorder) {
	t.Helper()
	store, rec := storagetest.NewMemory(t)
	store.Seed("1234/img.jpg", []byte("jpeg"), created, modified)
	store.Seed("1234/doc.pdf", []byte("pdf!!"), created, time.Time{})
	store.Seed("1234/thumbs/t.png", []byte("png"), created, modified)
	store.Seed("top.txt", []byte("top"), created, modified)
	return fileprovider.NewProvider(rec, "~/media/", logger.Nop()), rec
}

func TestNewFileEntry(t *testing.T) {
	res := storage.Resource{
		Key:         "1234/abc",
		Folder:      "1234",
		DisplayName: "photo.jpg",
		Bytes:       10,
		CreatedAt:   created,
		UpdatedAt:   modified,
	}
	e := fileprovider.NewFileEntry(res, nil)
	if e.Name() != "photo.jpg" || !e.Exists() || e.IsDir() || e.Length() != 10 {
		t.Errorf("unexpected entry %+v", e)
	}
	if !e.LastModified().Equal(modified) || !e.Created().Equal(created) {
		t.Errorf("unexpected times %v %v", e.LastModified(), e.Created())
	}
	if e.Key() != "1234/abc" {
		t.Errorf("Key() = %q", e.Key())
	}

	noName := fileprovider.NewFileEntry(storage.Resource{Key: "a/b/c.png"}, nil)
	if noName.Name() != "c.png" {
		t.Errorf("name should fall back to key leaf, got %q", noName.Name())
	}
}

func TestNotFoundFile(t *testing.T) {
	e := fileprovider.NotFoundFile("gone.jpg")
	if e.Exists() || e.Name() != "gone.jpg" {
		t.Errorf("unexpected entry %+v", e)
	}
	if _, err := e.Open(context.Background()); !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestDirectoryEntry(t *testing.T) {
	tests := []struct {
		prefix string
		name   string
	}{
		{"1234/thumbs/", "thumbs"},
		{"1234/thumbs", "thumbs"},
		{`1234\thumbs`, "thumbs"},
		{"top", "top"},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			d := fileprovider.NewDirectoryEntry(tt.prefix)
			if d.Name() != tt.name {
				t.Errorf("Name() = %q, want %q", d.Name(), tt.name)
			}
			if !d.IsDir() || !d.Exists() || d.Length() != -1 || !d.LastModified().IsZero() {
				t.Errorf("unexpected directory entry %+v", d)
			}
		})
	}

	_, err := fileprovider.NewDirectoryEntry("x").Open(context.Background())
	if !errors.IsCode(err, errors.ErrCodeUnsupported) {
		t.Errorf("expected UNSUPPORTED_OPERATION, got %v", err)
	}
}

func TestEntryInfo(t *testing.T) {
	fi := fileprovider.NewDirectoryEntry("a/b").Info()
	if !fi.IsDir() || fi.Mode()&fs.ModeDir == 0 || fi.Size() != 0 {
		t.Errorf("unexpected dir info: %v %v %d", fi.IsDir(), fi.Mode(), fi.Size())
	}
	fi = fileprovider.NewFileEntry(storage.Resource{Key: "a.txt", Bytes: 3}, nil).Info()
	if fi.IsDir() || fi.Size() != 3 || fi.Name() != "a.txt" {
		t.Errorf("unexpected file info: %v %d %s", fi.IsDir(), fi.Size(), fi.Name())
	}
}

func TestDirectoryListingOrder(t *testing.T) {
	folders := []storage.Folder{{Name: "z", Path: "m/z"}, {Name: "a", Path: "m/a"}}
	resources := []storage.Resource{{Key: "m/b.jpg"}, {Key: "m/a.jpg"}}
	l := fileprovider.NewDirectoryListing(folders, resources, nil)

	var names []string
	for e := range l.All() {
		names = append(names, e.Name())
	}
	want := []string{"z", "a", "b.jpg", "a.jpg"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
	if !l.Exists() || l.Len() != 4 {
		t.Errorf("Exists=%v Len=%d", l.Exists(), l.Len())
	}
	if !l.Entries()[0].IsDir() || l.Entries()[2].IsDir() {
		t.Error("folders must come before files")
	}
}

func TestEmptyListingIsSingleton(t *testing.T) {
	l := fileprovider.NewDirectoryListing(nil, nil, nil)
	if l != fileprovider.NotFoundDirectory || l.Exists() {
		t.Errorf("expected NotFoundDirectory, got %+v", l)
	}
}

func TestProviderGetFileInfo(t *testing.T) {
	p, rec := newProvider(t)
	ctx := context.Background()

	tests := []struct {
		subpath string
		exists  bool
		name    string
		key     string
	}{
		{"1234/img.jpg", true, "img.jpg", "1234/img.jpg"},
		{"/1234/img.jpg", true, "img.jpg", "1234/img.jpg"},
		{"media/1234/img.jpg", true, "img.jpg", "1234/img.jpg"},
		{`1234\img.jpg`, true, "img.jpg", "1234/img.jpg"},
		{"1234/none.jpg", false, "none.jpg", "1234/none.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.subpath, func(t *testing.T) {
			e, err := p.GetFileInfo(ctx, tt.subpath)
			if err != nil {
				t.Fatalf("GetFileInfo: %v", err)
			}
			if e.Exists() != tt.exists || e.Name() != tt.name {
				t.Errorf("got exists=%v name=%q", e.Exists(), e.Name())
			}
			keys := rec.Keys(storagetest.OpGetResource)
			if keys[len(keys)-1] != tt.key {
				t.Errorf("looked up %q, want %q", keys[len(keys)-1], tt.key)
			}
		})
	}

	if rec.Calls(storagetest.OpDownload) != 0 {
		t.Error("GetFileInfo must not download")
	}

	before := rec.Total()
	e, err := p.GetFileInfo(ctx, "/")
	if err != nil || e.Exists() {
		t.Errorf("root: %+v, %v", e, err)
	}
	if rec.Total() != before {
		t.Error("root lookup must not call the client")
	}
}

func TestProviderOpen(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()

	e, err := p.GetFileInfo(ctx, "1234/img.jpg")
	if err != nil {
		t.Fatal(err)
	}
	rc, err := e.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "jpeg" {
		t.Errorf("content = %q", data)
	}

	_, err = p.Opener("1234/missing.jpg")(ctx)
	if !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND for missing content, got %v", err)
	}
}

func TestProviderGetDirectoryContents(t *testing.T) {
	p, rec := newProvider(t)
	ctx := context.Background()

	l, err := p.GetDirectoryContents(ctx, "1234")
	if err != nil {
		t.Fatalf("GetDirectoryContents: %v", err)
	}
	entries := l.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if !entries[0].IsDir() || entries[0].Name() != "thumbs" {
		t.Errorf("first entry = %q dir=%v", entries[0].Name(), entries[0].IsDir())
	}
	if entries[1].Name() != "doc.pdf" || entries[1].Length() != 5 {
		t.Errorf("second entry = %q len=%d", entries[1].Name(), entries[1].Length())
	}
	if !entries[1].LastModified().Equal(created) {
		t.Errorf("never-updated file should report created time, got %v", entries[1].LastModified())
	}

	root, err := p.GetDirectoryContents(ctx, "/media")
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if root.Len() != 2 {
		t.Errorf("root entries = %d, want folder 1234 and top.txt", root.Len())
	}

	missing, err := p.GetDirectoryContents(ctx, "nope")
	if err != nil || missing != fileprovider.NotFoundDirectory {
		t.Errorf("missing folder: %+v, %v", missing, err)
	}

	if got := rec.Keys(storagetest.OpListFolders); got[0] != "1234" || got[1] != "" {
		t.Errorf("listed folders %v", got)
	}
}

func TestProviderListKey(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()

	// Subpaths are rooted first, so "media" is the virtual root itself.
	sub, err := p.GetDirectoryContents(ctx, "media")
	if err != nil || sub.Len() != 2 {
		t.Fatalf("subpath media: %d entries, %v", sub.Len(), err)
	}

	// A key is taken as is: there is no folder named media.
	byKey, err := p.ListKey(ctx, "media")
	if err != nil || byKey != fileprovider.NotFoundDirectory {
		t.Errorf("key media: %+v, %v", byKey, err)
	}
}

func TestProviderServiceError(t *testing.T) {
	p, rec := newProvider(t)
	rec.FailOn(storagetest.OpListResources, stderrors.New("connection reset"))

	_, err := p.GetDirectoryContents(context.Background(), "1234")
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeServiceError {
		t.Fatalf("expected SERVICE_ERROR, got %v", err)
	}
	if appErr.Details["storage_key"] != "1234" {
		t.Errorf("details = %v", appErr.Details)
	}
}

func TestProviderWatch(t *testing.T) {
	p, _ := newProvider(t)
	tok := p.Watch("**/*")
	if tok != fileprovider.NullChangeToken || tok.HasChanged() || tok.ActiveChangeCallbacks() {
		t.Error("expected inert NullChangeToken")
	}
	tok.RegisterChangeCallback(func() { t.Error("callback must never fire") })()
}

func TestFS(t *testing.T) {
	p, _ := newProvider(t)
	fsys := fileprovider.FS(context.Background(), p)

	if err := fstest.TestFS(fsys, "1234/img.jpg", "1234/doc.pdf", "1234/thumbs/t.png", "top.txt"); err != nil {
		t.Fatal(err)
	}

	data, err := fs.ReadFile(fsys, "1234/img.jpg")
	if err != nil || string(data) != "jpeg" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}
	if _, err := fs.Stat(fsys, "1234/none.jpg"); !stderrors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if _, err := fsys.Open("../escape"); !stderrors.Is(err, fs.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestFSSeekWithoutDownload(t *testing.T) {
	p, rec := newProvider(t)
	fsys := fileprovider.FS(context.Background(), p)

	f, err := fsys.Open("1234/img.jpg")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	seeker := f.(io.ReadSeeker)
	if end, err := seeker.Seek(0, io.SeekEnd); err != nil || end != 4 {
		t.Fatalf("Seek(end) = %d, %v", end, err)
	}
	if _, err := seeker.Seek(-1, io.SeekStart); err == nil {
		t.Error("negative offset must fail")
	}
	if rec.Calls(storagetest.OpDownload) != 0 {
		t.Fatal("seeking must not download")
	}

	if _, err := seeker.Seek(2, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	rest, err := io.ReadAll(seeker)
	if err != nil || string(rest) != "eg" {
		t.Errorf("read after seek = %q, %v", rest, err)
	}
	if rec.Calls(storagetest.OpDownload) != 1 {
		t.Errorf("downloads = %d, want 1", rec.Calls(storagetest.OpDownload))
	}
}

func TestFSFileServer(t *testing.T) {
	p, rec := newProvider(t)
	srv := http.FileServerFS(fileprovider.FS(context.Background(), p))

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodHead, "/1234/img.jpg", http.NoBody))
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Length") != "4" {
		t.Fatalf("HEAD = %d, length %q", rr.Code, rr.Header().Get("Content-Length"))
	}
	if rr.Body.Len() != 0 || rec.Calls(storagetest.OpDownload) != 0 {
		t.Errorf("HEAD downloaded the asset (%d calls)", rec.Calls(storagetest.OpDownload))
	}

	req := httptest.NewRequest(http.MethodGet, "/1234/img.jpg", http.NoBody)
	req.Header.Set("Range", "bytes=1-2")
	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusPartialContent || rr.Body.String() != "pe" {
		t.Errorf("range = %d %q", rr.Code, rr.Body.String())
	}
	if rec.Calls(storagetest.OpDownload) != 1 {
		t.Errorf("downloads = %d, want 1", rec.Calls(storagetest.OpDownload))
	}
}
