package middleware

import (
	"net/http"

	"github.com/kbukum/mediafs/errors"
	"github.com/kbukum/mediafs/util"
)

const defaultMaxBodySize = 100 * 1024 * 1024 // 100MB

// BodySizeLimit returns middleware that restricts the request body to the given
// size string (e.g. "10MB", "512KB", "1GB"). Larger uploads fail while the
// handler reads them.
func BodySizeLimit(maxSize string) Middleware {
	size := util.ParseSize(maxSize, defaultMaxBodySize)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > size {
				writeError(w, tooLarge(maxSize))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, size)
			next.ServeHTTP(w, r)
		})
	}
}

func tooLarge(limit string) *errors.AppError {
	return errors.New(errors.ErrCodeInvalidArgument, "Request body exceeds "+limit+".", http.StatusRequestEntityTooLarge)
}
