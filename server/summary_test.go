package server

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/mediafs/errors"
)

func TestFormatHandlerName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"github.com/kbukum/mediafs/server.(*files).list-fm", "files.list"},
		{"github.com/kbukum/mediafs/server/endpoint.Health.func1", "health"},
		{"github.com/kbukum/mediafs/server/endpoint.Info.func1", "info"},
		{"main.handler", "main.handler"},
	}
	for _, tt := range tests {
		if got := formatHandlerName(tt.in); got != tt.want {
			t.Errorf("formatHandlerName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCompareRoutes(t *testing.T) {
	type route struct{ method, path string }
	routes := []route{
		{"GET", "/health"},
		{"DELETE", "/api/v1/files"},
		{"GET", "/info"},
		{"PUT", "/api/v1/files"},
		{"GET", "/api/v1/files"},
		{"GET", "/api/v1/directories"},
	}
	slices.SortFunc(routes, func(a, b route) int { return compareRoutes(a.method, a.path, b.method, b.path) })

	want := []route{
		{"GET", "/api/v1/directories"},
		{"GET", "/api/v1/files"},
		{"PUT", "/api/v1/files"},
		{"DELETE", "/api/v1/files"},
		{"GET", "/health"},
		{"GET", "/info"},
	}
	if !slices.Equal(routes, want) {
		t.Errorf("order = %v, want %v", routes, want)
	}
}

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", errors.NotFound("file", "a.jpg"), http.StatusNotFound},
		{"conflict", errors.AlreadyExists("file", "a.jpg"), http.StatusConflict},
		{"unsupported", errors.UnsupportedOperation("delete_directory", "root"), http.StatusMethodNotAllowed},
		{"plain error", http.ErrBodyNotAllowed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rr)
			RespondWithError(c, tt.err)
			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}
			if !c.IsAborted() {
				t.Error("context not aborted")
			}
		})
	}
}
