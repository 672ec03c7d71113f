package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/kbukum/mediafs/observability"
)

// Metrics records request counts and latency. Requests are grouped by
// method and their first path segment so asset paths do not explode the
// route attribute.
func Metrics(m *observability.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()
			m.RecordRequestStart(ctx)
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)
			m.RecordRequestEnd(ctx, r.Method, routeGroup(r.URL.Path), sw.status, time.Since(start))
		})
	}
}

// routeGroup returns "/api" for "/api/v1/files" and "/" for "/".
func routeGroup(path string) string {
	rest := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return "/" + rest
}
