package middleware

import (
	stderrors "errors"
	"net/http"

	"github.com/kbukum/mediafs/errors"
	"github.com/kbukum/mediafs/resilience"
)

// Uploads runs PUT requests inside bulkhead b so a burst of large uploads
// cannot exhaust memory. Requests that find no free slot get 503 with a
// Retry-After hint. Other methods pass straight through.
func Uploads(b *resilience.Bulkhead) Middleware {
	return func(next http.Handler) http.Handler {
		if b == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut {
				next.ServeHTTP(w, r)
				return
			}
			err := b.Execute(r.Context(), func() error {
				next.ServeHTTP(w, r)
				return nil
			})
			if stderrors.Is(err, resilience.ErrBulkheadFull) || stderrors.Is(err, resilience.ErrBulkheadTimeout) {
				w.Header().Set("Retry-After", "1")
				writeError(w, errors.ServiceUnavailable("upload capacity"))
			}
		})
	}
}
