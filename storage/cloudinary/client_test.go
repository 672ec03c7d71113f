package cloudinary

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/mediafs/logger"
	"github.com/kbukum/mediafs/storage"
)

const (
	testCloud  = "demo"
	testKey    = "key123"
	testSecret = "s3cr3t"
)

// fakeCloudinary serves the subset of the Admin and Upload APIs the client
// uses, backed by an in-memory map. By default it behaves like a cloud in
// dynamic folder mode: records carry asset_folder and display_name, and an
// upload lands in the asset folder it names, or the root.
type fakeCloudinary struct {
	t           *testing.T
	srv         *httptest.Server
	mu          sync.Mutex
	fixed       bool
	assets      map[string][]byte
	assetFolder map[string]string
	created     map[string]time.Time
	folders     []string
	pageSize    int
	calls       map[string]int
	lastUpload  url.Values
}

func newFake(t *testing.T) *fakeCloudinary {
	t.Helper()
	f := &fakeCloudinary{
		t:        t,
		assets:      map[string][]byte{},
		assetFolder: map[string]string{},
		created:     map[string]time.Time{},
		pageSize:    500,
		calls:       map[string]int{},
	}

	base := "/v1_1/" + testCloud
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+base+"/ping", f.admin(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	mux.HandleFunc("GET "+base+"/folders", f.admin(f.listFolders))
	mux.HandleFunc("GET "+base+"/folders/{path...}", f.admin(f.listFolders))
	mux.HandleFunc("DELETE "+base+"/folders/{path...}", f.admin(f.deleteFolder))
	mux.HandleFunc("GET "+base+"/resources/by_asset_folder", f.admin(f.listAssetFolder))
	mux.HandleFunc("GET "+base+"/resources/image/upload", f.admin(f.listResources))
	mux.HandleFunc("GET "+base+"/resources/image/upload/{id...}", f.admin(f.getResource))
	mux.HandleFunc("DELETE "+base+"/resources/image/upload", f.admin(f.deleteResources))
	mux.HandleFunc("POST "+base+"/image/upload", f.upload)
	mux.HandleFunc("GET /res/{id...}", f.deliver)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeCloudinary) client(t *testing.T, mutate ...func(*storage.Config)) *Client {
	t.Helper()
	cfg := storage.Config{
		Provider:  storage.ProviderCloudinary,
		Cloud:     testCloud,
		APIKey:    testKey,
		APISecret: testSecret,
		Endpoint:  f.srv.URL,
	}
	if f.fixed {
		cfg.FolderMode = storage.FolderModeFixed
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg, logger.Nop(), WithClock(func() time.Time { return time.Unix(1700000000, 0) }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func (f *fakeCloudinary) seed(key, body string) {
	f.seedIn(key, parentOf(key), body)
}

// seedIn files key under an asset folder unrelated to its public ID, as
// the media library does for assets moved or uploaded in the console.
func (f *fakeCloudinary) seedIn(key, folder, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assets[key] = []byte(body)
	f.assetFolder[key] = folder
	f.created[key] = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
}

func parentOf(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[:i]
	}
	return ""
}

func (f *fakeCloudinary) admin(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != testKey || pass != testSecret {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]string{"message": "Invalid credentials"}})
			return
		}
		f.mu.Lock()
		f.calls[r.Method+" "+r.URL.Path]++
		f.mu.Unlock()
		h(w, r)
	}
}

func (f *fakeCloudinary) resourceJSON(key string) map[string]any {
	ext := ""
	if i := strings.LastIndex(key, "."); i >= 0 {
		ext = key[i+1:]
	}
	body := map[string]any{
		"public_id":     key,
		"format":        ext,
		"resource_type": "image",
		"bytes":         len(f.assets[key]),
		"created_at":    f.created[key].Format(time.RFC3339),
		"secure_url":    f.srv.URL + "/res/" + key,
	}
	if f.fixed {
		body["folder"] = parentOf(key)
	} else {
		body["asset_folder"] = f.assetFolder[key]
		body["display_name"] = key[strings.LastIndex(key, "/")+1:]
	}
	return body
}

func (f *fakeCloudinary) listFolders(w http.ResponseWriter, r *http.Request) {
	parent := r.PathValue("path")
	f.mu.Lock()
	defer f.mu.Unlock()

	seen := map[string]bool{}
	add := func(p string) {
		for p != "" {
			seen[p] = true
			i := strings.LastIndex(p, "/")
			if i < 0 {
				break
			}
			p = p[:i]
		}
	}
	for k := range f.assets {
		add(f.assetFolder[k])
	}
	for _, p := range f.folders {
		add(p)
	}

	var paths []string
	for p := range seen {
		i := strings.LastIndex(p, "/")
		dir := ""
		if i >= 0 {
			dir = p[:i]
		}
		if dir == parent {
			paths = append(paths, p)
		}
	}
	if parent != "" && !seen[parent] {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]string{"message": "Can't find folder with path " + parent}})
		return
	}
	sort.Strings(paths)
	if n, _ := strconv.Atoi(r.URL.Query().Get("max_results")); n > 0 && len(paths) > n {
		paths = paths[:n]
	}

	folders := []map[string]string{}
	for _, p := range paths {
		folders = append(folders, map[string]string{"name": p[strings.LastIndex(p, "/")+1:], "path": p})
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": folders, "total_count": len(folders)})
}

func (f *fakeCloudinary) listResources(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.assets {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	f.page(w, r, keys)
}

func (f *fakeCloudinary) listAssetFolder(w http.ResponseWriter, r *http.Request) {
	folder := r.URL.Query().Get("asset_folder")
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.assets {
		if f.assetFolder[k] == folder {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	f.page(w, r, keys)
}

func (f *fakeCloudinary) page(w http.ResponseWriter, r *http.Request, keys []string) {
	start, _ := strconv.Atoi(r.URL.Query().Get("next_cursor"))
	end := min(start+f.pageSize, len(keys))
	resources := []map[string]any{}
	for _, k := range keys[start:end] {
		resources = append(resources, f.resourceJSON(k))
	}
	resp := map[string]any{"resources": resources}
	if end < len(keys) {
		resp["next_cursor"] = strconv.Itoa(end)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *fakeCloudinary) getResource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.assets[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]string{"message": "Resource not found - " + id}})
		return
	}
	writeJSON(w, http.StatusOK, f.resourceJSON(id))
}

func (f *fakeCloudinary) deleteResources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f.mu.Lock()
	defer f.mu.Unlock()

	deleted := map[string]string{}
	for _, id := range q["public_ids[]"] {
		if _, ok := f.assets[id]; ok {
			delete(f.assets, id)
			deleted[id] = "deleted"
		} else {
			deleted[id] = "not_found"
		}
	}
	if prefix := q.Get("prefix"); prefix != "" {
		for k := range f.assets {
			if strings.HasPrefix(k, prefix) {
				delete(f.assets, k)
				deleted[k] = "deleted"
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted, "partial": false})
}

func (f *fakeCloudinary) deleteFolder(w http.ResponseWriter, r *http.Request) {
	p := r.PathValue("path")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.folders {
		if existing == p {
			f.folders = append(f.folders[:i], f.folders[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{"deleted": []string{p}})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]string{"message": "Can't find folder with path " + p}})
}

func (f *fakeCloudinary) upload(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := r.BasicAuth(); ok {
		f.t.Errorf("upload must not send basic auth")
	}
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]string{"message": err.Error()}})
		return
	}

	form := r.MultipartForm.Value
	var names []string
	for k := range form {
		if k != "api_key" && k != "signature" && k != "file" {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, k+"="+form[k][0])
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "&") + testSecret))
	if got := r.FormValue("signature"); got != hex.EncodeToString(sum[:]) || r.FormValue("api_key") != testKey {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]string{"message": "Invalid Signature"}})
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]string{"message": "Missing required parameter - file"}})
		return
	}
	data, _ := io.ReadAll(file)

	id := r.FormValue("public_id")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUpload = form
	if _, exists := f.assets[id]; exists && r.FormValue("overwrite") == "false" {
		body := f.resourceJSON(id)
		body["existing"] = true
		writeJSON(w, http.StatusOK, body)
		return
	}
	f.assets[id] = data
	f.assetFolder[id] = r.FormValue("asset_folder")
	if f.fixed {
		f.assetFolder[id] = parentOf(id)
	}
	f.created[id] = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	writeJSON(w, http.StatusOK, f.resourceJSON(id))
}

func (f *fakeCloudinary) deliver(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "" {
		f.t.Errorf("delivery request must be anonymous")
	}
	f.mu.Lock()
	data, ok := f.assets[r.PathValue("id")]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSign(t *testing.T) {
	params := map[string]string{
		"timestamp": "1315060510",
		"public_id": "sample_image",
		"api_key":   "ignored",
		"file":      "ignored",
		"empty":     "",
	}
	sum := sha1.Sum([]byte("public_id=sample_image&timestamp=1315060510abcd"))
	if got, want := sign(params, "abcd"), hex.EncodeToString(sum[:]); got != want {
		t.Errorf("sign = %s, want %s", got, want)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(storage.Config{Cloud: "demo"}, logger.Nop()); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}

func TestListFolders(t *testing.T) {
	f := newFake(t)
	f.seed("media/2024/a.jpg", "a")
	f.seed("media/b.jpg", "b")
	f.seed("docs/c.pdf", "c")
	f.folders = []string{"empty"}
	c := f.client(t)
	ctx := context.Background()

	root, err := c.ListFolders(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListFolders root: %v", err)
	}
	if got := folderPaths(root); got != "docs,empty,media" {
		t.Errorf("root folders = %s", got)
	}

	sub, err := c.ListFolders(ctx, "media", 0)
	if err != nil {
		t.Fatalf("ListFolders media: %v", err)
	}
	if len(sub) != 1 || sub[0].Path != "media/2024" || sub[0].Name != "2024" {
		t.Errorf("subfolders = %+v", sub)
	}

	limited, err := c.ListFolders(ctx, "", 2)
	if err != nil {
		t.Fatalf("ListFolders limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 folders, got %d", len(limited))
	}
}

func TestListResourcesFiltersDirectChildren(t *testing.T) {
	f := newFake(t)
	f.seed("media/a.jpg", "a")
	f.seed("media/b.jpg", "bb")
	f.seed("media/2024/c.jpg", "c")
	f.seed("top.png", "t")
	f.pageSize = 1
	c := f.client(t)

	got, err := c.ListResources(context.Background(), "media")
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 resources, got %+v", got)
	}
	if got[0].Key != "media/a.jpg" || got[0].DisplayName != "a.jpg" || got[0].Folder != "media" {
		t.Errorf("unexpected first resource: %+v", got[0])
	}
	if got[1].Bytes != 2 || got[1].Format != "jpg" {
		t.Errorf("unexpected second resource: %+v", got[1])
	}

	root, err := c.ListResources(context.Background(), "")
	if err != nil {
		t.Fatalf("ListResources root: %v", err)
	}
	if len(root) != 1 || root[0].Key != "top.png" {
		t.Errorf("root resources = %+v", root)
	}

	all, err := c.ListAllResources(context.Background())
	if err != nil {
		t.Fatalf("ListAllResources: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 resources across pages, got %d", len(all))
	}
}

func TestGetResource(t *testing.T) {
	f := newFake(t)
	f.seed("1234/img.jpg", "jpeg")
	c := f.client(t)
	ctx := context.Background()

	res, err := c.GetResource(ctx, "1234/img.jpg")
	if err != nil {
		t.Fatalf("GetResource: %v", err)
	}
	if res == nil || res.Bytes != 4 || !res.CreatedAt.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected resource: %+v", res)
	}
	if !strings.HasSuffix(res.URL, "/res/1234/img.jpg") {
		t.Errorf("unexpected url %q", res.URL)
	}
	if !res.LastModified().Equal(res.CreatedAt) {
		t.Errorf("LastModified should fall back to CreatedAt")
	}

	missing, err := c.GetResource(ctx, "1234/none.jpg")
	if err != nil || missing != nil {
		t.Errorf("missing resource: got %+v, %v", missing, err)
	}
}

func TestUpload(t *testing.T) {
	f := newFake(t)
	c := f.client(t)
	ctx := context.Background()

	res, err := c.Upload(ctx, "1234/new.jpg", strings.NewReader("hello"), false)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.Key != "1234/new.jpg" || res.Bytes != 5 {
		t.Errorf("unexpected resource: %+v", res)
	}

	_, err = c.Upload(ctx, "1234/new.jpg", strings.NewReader("again"), false)
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if string(f.assets["1234/new.jpg"]) != "hello" {
		t.Errorf("conditional upload must keep stored content")
	}

	if _, err := c.Upload(ctx, "1234/new.jpg", strings.NewReader("again"), true); err != nil {
		t.Fatalf("overwrite Upload: %v", err)
	}
	if string(f.assets["1234/new.jpg"]) != "again" {
		t.Errorf("overwrite did not replace content")
	}
}

func TestDownload(t *testing.T) {
	f := newFake(t)
	f.seed("1234/img.jpg", "jpeg-bytes")
	c := f.client(t)
	ctx := context.Background()

	rc, err := c.Download(ctx, "1234/img.jpg")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "jpeg-bytes" {
		t.Errorf("Download = %q", data)
	}

	if _, err := c.Download(ctx, "1234/none.jpg"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteResource(t *testing.T) {
	f := newFake(t)
	f.seed("1234/img.jpg", "x")
	c := f.client(t)
	ctx := context.Background()

	if err := c.DeleteResource(ctx, "1234/img.jpg"); err != nil {
		t.Fatalf("DeleteResource: %v", err)
	}
	if _, ok := f.assets["1234/img.jpg"]; ok {
		t.Error("resource still present")
	}
	if err := c.DeleteResource(ctx, "1234/img.jpg"); err != nil {
		t.Errorf("deleting a missing resource should succeed, got %v", err)
	}
}

func TestDeleteFolder(t *testing.T) {
	f := newFake(t)
	f.seed("media/a.jpg", "a")
	f.seed("media/2024/b.jpg", "b")
	f.seed("mediakit/c.jpg", "c")
	f.folders = []string{"media"}
	c := f.client(t)
	ctx := context.Background()

	if err := c.DeleteFolder(ctx, "media"); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}
	if len(f.assets) != 1 {
		t.Errorf("expected only mediakit/c.jpg to remain, got %v", f.assets)
	}
	if err := c.DeleteFolder(ctx, "media"); err != nil {
		t.Errorf("deleting a missing folder should succeed, got %v", err)
	}
}

func TestDynamicFolders(t *testing.T) {
	f := newFake(t)
	f.seedIn("k3j2h1", "a", "console")
	f.seed("b/y.jpg", "y")
	c := f.client(t)
	ctx := context.Background()

	if _, err := c.Upload(ctx, "a/x.jpg", strings.NewReader("x"), true); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got := f.lastUpload.Get("asset_folder"); got != "a" {
		t.Errorf("asset_folder = %q, want a", got)
	}
	if got := f.lastUpload.Get("display_name"); got != "x.jpg" {
		t.Errorf("display_name = %q, want x.jpg", got)
	}

	got, err := c.ListResources(ctx, "a")
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}
	var keys []string
	for _, r := range got {
		keys = append(keys, r.Key)
		if r.Folder != "a" {
			t.Errorf("%s folder = %q", r.Key, r.Folder)
		}
	}
	if strings.Join(keys, ",") != "a/x.jpg,k3j2h1" {
		t.Errorf("listing of a = %v", keys)
	}

	if _, err := c.Upload(ctx, "top.jpg", strings.NewReader("t"), true); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.lastUpload["asset_folder"]; ok {
		t.Error("root upload must not name an asset folder")
	}

	if err := c.DeleteFolder(ctx, "a"); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}
	if _, ok := f.assets["k3j2h1"]; ok {
		t.Error("asset filed under a survived the folder delete")
	}
	if _, ok := f.assets["b/y.jpg"]; !ok {
		t.Error("asset outside the folder was deleted")
	}
}

func TestFixedFolderMode(t *testing.T) {
	f := newFake(t)
	f.fixed = true
	f.seed("a/old.jpg", "o")
	c := f.client(t)
	ctx := context.Background()

	if _, err := c.Upload(ctx, "a/x.jpg", strings.NewReader("x"), true); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, ok := f.lastUpload["asset_folder"]; ok {
		t.Error("fixed mode must not send asset_folder")
	}

	got, err := c.ListResources(ctx, "a")
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}
	if len(got) != 2 || got[0].Key != "a/old.jpg" || got[1].Folder != "a" {
		t.Errorf("listing of a = %+v", got)
	}
	if f.calls["GET /v1_1/"+testCloud+"/resources/by_asset_folder"] != 0 {
		t.Error("fixed mode listed by asset folder")
	}

	if err := c.DeleteFolder(ctx, "a"); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}
	if len(f.assets) != 0 {
		t.Errorf("assets left: %v", f.assets)
	}
}

func TestPingAndAuthFailure(t *testing.T) {
	f := newFake(t)
	if err := f.client(t).Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	bad := f.client(t, func(cfg *storage.Config) { cfg.APISecret = "wrong" })
	err := bad.Ping(context.Background())
	if err == nil {
		t.Fatal("expected auth error")
	}
	if reason := storage.Reason(err); reason != storage.ReasonAuth {
		t.Errorf("reason = %q, want %q", reason, storage.ReasonAuth)
	}
}

func TestRetriesTransientReads(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		n := hits
		mu.Unlock()
		if n == 1 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": map[string]string{"message": "busy"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	c, err := New(storage.Config{Cloud: testCloud, APIKey: testKey, APISecret: testSecret, Endpoint: srv.URL, Retries: 2}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping after retry: %v", err)
	}
	if hits != 2 {
		t.Errorf("expected 2 attempts, got %d", hits)
	}
}

func TestFactoryRegistered(t *testing.T) {
	f := newFake(t)
	c, err := storage.New(storage.Config{
		Provider:  storage.ProviderCloudinary,
		Cloud:     testCloud,
		APIKey:    testKey,
		APISecret: testSecret,
		Endpoint:  f.srv.URL,
	}, logger.Nop())
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if _, ok := c.(*Client); !ok {
		t.Errorf("expected *Client, got %T", c)
	}
}

func folderPaths(fs []storage.Folder) string {
	paths := make([]string, len(fs))
	for i, f := range fs {
		paths[i] = f.Path
	}
	return strings.Join(paths, ",")
}
