package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/mediafs/auth"
	"github.com/kbukum/mediafs/cdn"
	"github.com/kbukum/mediafs/davfs"
	"github.com/kbukum/mediafs/filesystem"
	"github.com/kbukum/mediafs/logger"
	"github.com/kbukum/mediafs/server"
	servertest "github.com/kbukum/mediafs/server/testutil"
	"github.com/kbukum/mediafs/storage"
	"github.com/kbukum/mediafs/storage/memory"
	"github.com/kbukum/mediafs/storage/storagetest"
	"github.com/kbukum/mediafs/testutil"
)

var stamp = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func setup(t *testing.T, opts ...server.Option) (string, *memory.Store) {
	t.Helper()
	store, _ := storagetest.NewMemory(t)
	store.Seed("1234/img.jpg", []byte("jpeg"), stamp, stamp)
	store.Seed("1234/thumbs/t.jpg", []byte("t"), stamp, stamp)
	store.Seed("5678/a.pdf", []byte("pdf"), stamp, stamp)

	fs, err := filesystem.New(filesystem.Options{
		Config: storage.Config{
			Provider:  storage.ProviderMemory,
			Cloud:     "demo",
			APIKey:    "key",
			APISecret: "secret",
		},
		VirtualPath: "~/media",
	}, store, logger.Nop())
	if err != nil {
		t.Fatalf("filesystem.New: %v", err)
	}
	rw, err := cdn.New(cdn.Options{Enabled: true, URL: "https://cdn.example.com/", RemoveMediaFromPath: true}, "~/media", logger.Nop())
	if err != nil {
		t.Fatalf("cdn.New: %v", err)
	}

	comp := servertest.NewComponent(server.Config{WebDAV: true}, server.Media{
		FS:     fs,
		CDN:    rw,
		WebDAV: davfs.New(fs, logger.Nop()),
	}, opts...)
	testutil.T(t).Setup(comp)
	return comp.BaseURL(), store
}

func call(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	return callWith(t, method, url, body, nil)
}

func callWith(t *testing.T, method, url, body string, header http.Header) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

type envelope[T any] struct {
	Data  T `json:"data"`
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode[T any](t *testing.T, data []byte) envelope[T] {
	t.Helper()
	var out envelope[T]
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return out
}

func TestServesAssetsAtVirtualRoot(t *testing.T) {
	base, _ := setup(t)

	resp, body := call(t, http.MethodGet, base+"/media/1234/img.jpg", "")
	if resp.StatusCode != http.StatusOK || string(body) != "jpeg" {
		t.Fatalf("GET = %d %q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id")
	}

	resp, _ = call(t, http.MethodHead, base+"/media/1234/img.jpg", "")
	if resp.StatusCode != http.StatusOK || resp.ContentLength != 4 {
		t.Errorf("HEAD = %d, length %d", resp.StatusCode, resp.ContentLength)
	}

	resp, _ = call(t, http.MethodGet, base+"/media/1234/missing.jpg", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing asset = %d, want 404", resp.StatusCode)
	}
}

func TestListFiles(t *testing.T) {
	base, _ := setup(t)

	resp, body := call(t, http.MethodGet, base+"/api/v1/files?path=/media/1234", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	got := decode[[]struct {
		Name  string `json:"name"`
		Path  string `json:"path"`
		IsDir bool   `json:"is_dir"`
		Size  int64  `json:"size"`
		URL   string `json:"url"`
	}](t, body).Data
	if len(got) != 2 {
		t.Fatalf("entries = %+v", got)
	}
	if !got[0].IsDir || got[0].Name != "thumbs" || got[0].Path != "1234/thumbs" {
		t.Errorf("first entry = %+v, want folder thumbs", got[0])
	}
	if got[1].Name != "img.jpg" || got[1].Size != 4 || got[1].URL != "/media/1234/img.jpg" {
		t.Errorf("second entry = %+v", got[1])
	}

	resp, body = call(t, http.MethodGet, base+"/api/v1/files?path=/media/nope", "")
	if resp.StatusCode != http.StatusNotFound || decode[any](t, body).Error.Code != "NOT_FOUND" {
		t.Errorf("missing folder = %d %s", resp.StatusCode, body)
	}
}

func TestFileInfo(t *testing.T) {
	base, _ := setup(t)

	resp, body := call(t, http.MethodGet, base+"/api/v1/files/info?path=1234/img.jpg", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	info := decode[struct {
		Size         int64     `json:"size"`
		LastModified time.Time `json:"last_modified"`
	}](t, body).Data
	if info.Size != 4 || !info.LastModified.Equal(stamp) {
		t.Errorf("info = %+v", info)
	}

	resp, _ = call(t, http.MethodGet, base+"/api/v1/files/info?path=1234/none.jpg", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing file = %d", resp.StatusCode)
	}
}

func TestPutAndDelete(t *testing.T) {
	base, store := setup(t)
	url := base + "/api/v1/files?path=/media/1234/new.txt"

	resp, body := call(t, http.MethodPut, url, "fresh")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("PUT = %d %s", resp.StatusCode, body)
	}
	if res, _ := store.GetResource(t.Context(), "1234/new.txt"); res == nil || res.Bytes != 5 {
		t.Fatalf("stored resource = %+v", res)
	}

	resp, body = call(t, http.MethodPut, url+"&overwrite=false", "again")
	if resp.StatusCode != http.StatusConflict || decode[any](t, body).Error.Code != "ALREADY_EXISTS" {
		t.Errorf("conditional PUT = %d %s", resp.StatusCode, body)
	}

	resp, _ = call(t, http.MethodPut, url+"&overwrite=maybe", "x")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad overwrite flag = %d", resp.StatusCode)
	}

	resp, body = call(t, http.MethodPut, base+"/api/v1/files?path=", "x")
	if resp.StatusCode != http.StatusBadRequest || decode[any](t, body).Error.Code != "INVALID_ARGUMENT" {
		t.Errorf("blank path = %d %s", resp.StatusCode, body)
	}

	resp, _ = call(t, http.MethodDelete, url, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE = %d", resp.StatusCode)
	}
	if res, _ := store.GetResource(t.Context(), "1234/new.txt"); res != nil {
		t.Error("file still stored")
	}
}

func TestDirectories(t *testing.T) {
	base, store := setup(t)

	resp, body := call(t, http.MethodGet, base+"/api/v1/directories?path=/media", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	dirs := decode[[]string](t, body).Data
	if len(dirs) != 2 || dirs[0] != "1234" || dirs[1] != "5678" {
		t.Errorf("dirs = %v", dirs)
	}

	resp, body = call(t, http.MethodDelete, base+"/api/v1/directories?path=/media", "")
	if resp.StatusCode != http.StatusMethodNotAllowed || decode[any](t, body).Error.Code != "UNSUPPORTED_OPERATION" {
		t.Errorf("delete root = %d %s", resp.StatusCode, body)
	}

	resp, _ = call(t, http.MethodDelete, base+"/api/v1/directories?path=/media/1234", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete folder = %d", resp.StatusCode)
	}
	if res, _ := store.GetResource(t.Context(), "1234/thumbs/t.jpg"); res != nil {
		t.Error("nested file still stored")
	}
}

func TestURL(t *testing.T) {
	base, _ := setup(t)

	resp, body := call(t, http.MethodGet, base+"/api/v1/url?path=/media/1234/img.jpg", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[map[string]string](t, body).Data
	if got["url"] != "/media/1234/img.jpg" || got["cdn_url"] != "https://cdn.example.com/1234/img.jpg" {
		t.Errorf("urls = %v", got)
	}

	resp, _ = call(t, http.MethodGet, base+"/api/v1/url", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing path = %d", resp.StatusCode)
	}
}

func TestWebDAVMount(t *testing.T) {
	base, store := setup(t)

	resp, _ := call(t, http.MethodPut, base+"/webdav/5678/b.txt", "dav")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("PUT = %d", resp.StatusCode)
	}
	if res, _ := store.GetResource(t.Context(), "5678/b.txt"); res == nil {
		t.Fatal("WebDAV upload not stored")
	}

	req, _ := http.NewRequest("PROPFIND", base+"/webdav/5678/", nil)
	req.Header.Set("Depth", "1")
	r, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Body.Close()
	body, _ := io.ReadAll(r.Body)
	if r.StatusCode != http.StatusMultiStatus || !strings.Contains(string(body), "/webdav/5678/b.txt") {
		t.Errorf("PROPFIND = %d %s", r.StatusCode, body)
	}
}

func TestAuthGuardsWrites(t *testing.T) {
	tokens, err := auth.NewService(auth.Config{Enabled: true, Secret: strings.Repeat("k", 32)})
	if err != nil {
		t.Fatal(err)
	}
	token, err := tokens.Issue("uploader", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	base, store := setup(t, server.WithAuth(tokens.ValidatorFunc()))

	bearer := http.Header{"Authorization": {"Bearer " + token}}
	basic := func(pass string) http.Header {
		req, _ := http.NewRequest(http.MethodGet, base, nil)
		req.SetBasicAuth("anyone", pass)
		return req.Header
	}

	tests := []struct {
		name      string
		method    string
		path      string
		header    http.Header
		want      int
		challenge string
	}{
		{"asset read", http.MethodGet, "/media/1234/img.jpg", nil, http.StatusOK, ""},
		{"asset head", http.MethodHead, "/media/1234/img.jpg", nil, http.StatusOK, ""},
		{"listing", http.MethodGet, "/api/v1/files?path=/media/1234", nil, http.StatusOK, ""},
		{"health", http.MethodGet, "/health", nil, http.StatusOK, ""},
		{"info", http.MethodGet, "/info", nil, http.StatusOK, ""},
		{"put without token", http.MethodPut, "/api/v1/files?path=/media/new.txt", nil, http.StatusUnauthorized, "Bearer"},
		{"put with bad token", http.MethodPut, "/api/v1/files?path=/media/new.txt", http.Header{"Authorization": {"Bearer nope"}}, http.StatusUnauthorized, "Bearer"},
		{"put with other scheme", http.MethodPut, "/api/v1/files?path=/media/new.txt", http.Header{"Authorization": {"Token " + token}}, http.StatusUnauthorized, "Bearer"},
		{"delete file without token", http.MethodDelete, "/api/v1/files?path=/media/1234/img.jpg", nil, http.StatusUnauthorized, "Bearer"},
		{"delete folder without token", http.MethodDelete, "/api/v1/directories?path=/media/1234", nil, http.StatusUnauthorized, "Bearer"},
		{"webdav put without token", http.MethodPut, "/webdav/5678/b.txt", nil, http.StatusUnauthorized, `Basic realm="mediafs"`},
		{"webdav read without token", "PROPFIND", "/webdav/", nil, http.StatusUnauthorized, `Basic realm="mediafs"`},
		{"webdav with bad password", http.MethodPut, "/webdav/5678/b.txt", basic("wrong"), http.StatusUnauthorized, `Basic realm="mediafs"`},
		{"put with token", http.MethodPut, "/api/v1/files?path=/media/new.txt", bearer, http.StatusCreated, ""},
		{"webdav put with token as password", http.MethodPut, "/webdav/5678/b.txt", basic(token), http.StatusCreated, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := callWith(t, tt.method, base+tt.path, "data", tt.header)
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.want, body)
			}
			if tt.want != http.StatusUnauthorized {
				return
			}
			if got := resp.Header.Get("WWW-Authenticate"); got != tt.challenge {
				t.Errorf("WWW-Authenticate = %q, want %q", got, tt.challenge)
			}
			if env := decode[any](t, body); env.Error.Code != "UNAUTHORIZED" {
				t.Errorf("error code = %q", env.Error.Code)
			}
		})
	}

	if res, _ := store.GetResource(t.Context(), "1234/img.jpg"); res == nil {
		t.Error("unauthenticated delete removed the file")
	}
	if res, _ := store.GetResource(t.Context(), "new.txt"); res == nil {
		t.Error("authenticated upload not stored")
	}
}

func TestHealthAndInfo(t *testing.T) {
	base, _ := setup(t)

	resp, body := call(t, http.MethodGet, base+"/health", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"healthy"`) {
		t.Errorf("health = %d %s", resp.StatusCode, body)
	}
	resp, body = call(t, http.MethodGet, base+"/info", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"mediafs-test"`) {
		t.Errorf("info = %d %s", resp.StatusCode, body)
	}
}

func TestComponentRoutes(t *testing.T) {
	s := server.New(server.Config{WebDAV: true}, logger.Nop())
	s.RegisterDefaultEndpoints("mediafs", nil)
	s.GinEngine().GET("/api/v1/files", func(*gin.Context) {})

	routes := server.NewComponent(s).Routes()
	if len(routes) != 4 {
		t.Fatalf("routes = %+v", routes)
	}
	if routes[0].Path != "/api/v1/files" {
		t.Errorf("API routes must come first, got %+v", routes[0])
	}
	if last := routes[len(routes)-1]; last.Handler != "webdav" || last.Path != "/webdav/" {
		t.Errorf("webdav route = %+v", last)
	}
}
