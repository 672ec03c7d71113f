package middleware_test

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kbukum/mediafs/logger"
	"github.com/kbukum/mediafs/resilience"
	"github.com/kbukum/mediafs/server/middleware"
)

func ok(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return body.Error.Code
}

// ---------------------------------------------------------------------------
// Recovery
// ---------------------------------------------------------------------------

func TestRecovery_NoPanic(t *testing.T) {
	handler := middleware.Recovery(logger.Nop())(http.HandlerFunc(ok))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRecovery_Panic(t *testing.T) {
	handler := middleware.Recovery(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("test panic")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/test", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "INTERNAL_ERROR" {
		t.Errorf("code = %q", code)
	}
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	handler := middleware.Recovery(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recovered %v, want ErrAbortHandler", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", http.NoBody))
}

// ---------------------------------------------------------------------------
// RequestID
// ---------------------------------------------------------------------------

func TestRequestID(t *testing.T) {
	var seen string
	handler := middleware.RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(middleware.RequestIDHeader)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", http.NoBody))
	id := rr.Header().Get(middleware.RequestIDHeader)
	if id == "" || id != seen {
		t.Fatalf("response id %q, handler saw %q", id, seen)
	}

	req := httptest.NewRequest("GET", "/", http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "client-id")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if got := rr.Header().Get(middleware.RequestIDHeader); got != "client-id" {
		t.Errorf("supplied id replaced with %q", got)
	}
}

// ---------------------------------------------------------------------------
// CORS
// ---------------------------------------------------------------------------

func TestCORS(t *testing.T) {
	cfg := &middleware.CORSConfig{
		AllowedOrigins:   []string{"https://cms.example.com"},
		AllowedMethods:   []string{"GET", "PUT"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}
	var reached bool
	handler := middleware.CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		ok(w, r)
	}))

	tests := []struct {
		name        string
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantOrigin  string
		wantReached bool
	}{
		{"allowed origin", "GET", "https://cms.example.com", false, 200, "https://cms.example.com", true},
		{"disallowed origin", "GET", "https://evil.example.com", false, 200, "", true},
		{"preflight", "OPTIONS", "https://cms.example.com", true, 204, "https://cms.example.com", false},
		{"webdav options", "OPTIONS", "", false, 200, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(tt.method, "/webdav/", http.NoBody)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", "PUT")
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow origin = %q, want %q", got, tt.wantOrigin)
			}
			if reached != tt.wantReached {
				t.Errorf("handler reached = %v, want %v", reached, tt.wantReached)
			}
		})
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", http.NoBody)
	req.Header.Set("Origin", "https://cms.example.com")
	handler.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Methods") != "GET, PUT" {
		t.Errorf("allow methods = %q", rr.Header().Get("Access-Control-Allow-Methods"))
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("credentials header missing")
	}
}

func TestCORS_Wildcard(t *testing.T) {
	handler := middleware.CORS(&middleware.CORSConfig{AllowedOrigins: []string{"*"}})(http.HandlerFunc(ok))
	req := httptest.NewRequest("GET", "/", http.NoBody)
	req.Header.Set("Origin", "https://any.example.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://any.example.com" {
		t.Errorf("allow origin = %q", got)
	}
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

func TestAuth(t *testing.T) {
	validate := func(token string) (any, error) {
		if token != "good" {
			return nil, stderrors.New("bad token")
		}
		return "claims-for-good", nil
	}
	var seen any
	handler := middleware.Auth(middleware.AuthConfig{
		TokenValidator: validate,
		Protected:      func(r *http.Request) bool { return r.Method != http.MethodGet },
		BasicRealm:     "media",
		Basic:          func(r *http.Request) bool { return strings.HasPrefix(r.URL.Path, "/dav/") },
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.Claims(r.Context())
		ok(w, r)
	}))

	tests := []struct {
		name      string
		method    string
		path      string
		auth      string
		user      string
		pass      string
		want      int
		challenge string
	}{
		{name: "unprotected", method: "GET", path: "/api", want: http.StatusOK},
		{name: "missing header", method: "PUT", path: "/api", want: http.StatusUnauthorized, challenge: "Bearer"},
		{name: "wrong scheme", method: "PUT", path: "/api", auth: "Basic", want: http.StatusUnauthorized, challenge: "Bearer"},
		{name: "empty bearer", method: "PUT", path: "/api", auth: "Bearer ", want: http.StatusUnauthorized, challenge: "Bearer"},
		{name: "invalid token", method: "PUT", path: "/api", auth: "Bearer bad", want: http.StatusUnauthorized, challenge: "Bearer"},
		{name: "valid token", method: "PUT", path: "/api", auth: "Bearer good", want: http.StatusOK},
		{name: "lowercase scheme", method: "PUT", path: "/api", auth: "bearer good", want: http.StatusOK},
		{name: "basic challenge", method: "PUT", path: "/dav/a.txt", want: http.StatusUnauthorized, challenge: `Basic realm="media"`},
		{name: "basic password token", method: "PUT", path: "/dav/a.txt", user: "me", pass: "good", want: http.StatusOK},
		{name: "basic wrong password", method: "PUT", path: "/dav/a.txt", user: "me", pass: "bad", want: http.StatusUnauthorized, challenge: `Basic realm="media"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			if tt.user != "" {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized {
				if got := rr.Header().Get("WWW-Authenticate"); got != tt.challenge {
					t.Errorf("WWW-Authenticate = %q, want %q", got, tt.challenge)
				}
				if code := errorCode(t, rr); code != "UNAUTHORIZED" {
					t.Errorf("code = %q", code)
				}
				return
			}
			if tt.method != "GET" && seen != "claims-for-good" {
				t.Errorf("claims = %v", seen)
			}
		})
	}
}

func TestAuth_NilValidatorPassesThrough(t *testing.T) {
	handler := middleware.Auth(middleware.AuthConfig{})(http.HandlerFunc(ok))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("DELETE", "/api", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// RequestLogger
// ---------------------------------------------------------------------------

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug"}, "test", &buf)
	handler := middleware.RequestLogger(log)(http.HandlerFunc(ok))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/media/a.jpg", http.NoBody))
	line := buf.String()
	for _, want := range []string{`"path":"/media/a.jpg"`, `"status":200`, `"bytes":2`} {
		if !strings.Contains(line, want) {
			t.Errorf("log %q missing %s", line, want)
		}
	}

	buf.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", http.NoBody))
	if buf.Len() != 0 {
		t.Errorf("health check logged: %q", buf.String())
	}
}

// ---------------------------------------------------------------------------
// BodySizeLimit
// ---------------------------------------------------------------------------

func TestBodySizeLimit(t *testing.T) {
	var readErr error
	handler := middleware.BodySizeLimit("10")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("PUT", "/", strings.NewReader(strings.Repeat("x", 20))))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("declared oversize body: status %d", rr.Code)
	}

	req := httptest.NewRequest("PUT", "/", io.NopCloser(strings.NewReader(strings.Repeat("x", 20))))
	req.ContentLength = -1
	handler.ServeHTTP(httptest.NewRecorder(), req)
	var maxErr *http.MaxBytesError
	if !stderrors.As(readErr, &maxErr) {
		t.Errorf("streamed oversize body: read error %v", readErr)
	}

	readErr = nil
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("PUT", "/", strings.NewReader("small")))
	if readErr != nil {
		t.Errorf("small body: %v", readErr)
	}
}

// ---------------------------------------------------------------------------
// Uploads
// ---------------------------------------------------------------------------

func TestUploads(t *testing.T) {
	b := resilience.NewBulkhead(resilience.BulkheadConfig{Name: "uploads", MaxConcurrent: 1})
	entered := make(chan struct{})
	release := make(chan struct{})
	handler := middleware.Uploads(b)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			close(entered)
			<-release
		}
		w.WriteHeader(http.StatusCreated)
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	first := httptest.NewRecorder()
	go func() {
		defer wg.Done()
		handler.ServeHTTP(first, httptest.NewRequest("PUT", "/a", strings.NewReader("a")))
	}()
	<-entered

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("PUT", "/b", strings.NewReader("b")))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("second upload: status %d, want 503", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "1" {
		t.Error("Retry-After missing")
	}
	if code := errorCode(t, rr); code != "SERVICE_UNAVAILABLE" {
		t.Errorf("code = %q", code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/a", http.NoBody))
	if rr.Code != http.StatusCreated {
		t.Errorf("GET blocked by upload slot: %d", rr.Code)
	}

	close(release)
	wg.Wait()
	if first.Code != http.StatusCreated {
		t.Errorf("first upload: status %d", first.Code)
	}
}

func TestUploads_NilBulkhead(t *testing.T) {
	handler := middleware.Uploads(nil)(http.HandlerFunc(ok))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("PUT", "/", strings.NewReader("x")))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// Metrics and Chain
// ---------------------------------------------------------------------------

func TestMetrics_NilPassesThrough(t *testing.T) {
	handler := middleware.Metrics(nil)(http.HandlerFunc(ok))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/files", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) middleware.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	handler := middleware.Chain(mark("a"), mark("b"), mark("c"))(http.HandlerFunc(ok))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", http.NoBody))

	if strings.Join(order, ",") != "a,b,c" {
		t.Errorf("order = %v", order)
	}
}

func TestStatusWriterFlushes(t *testing.T) {
	handler := middleware.RequestLogger(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("chunk"))
		http.NewResponseController(w).Flush()
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/media/x", http.NoBody))
	if !rr.Flushed {
		t.Error("Flush not forwarded")
	}
}
