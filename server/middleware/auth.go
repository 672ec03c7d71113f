package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/kbukum/mediafs/errors"
)

// AuthConfig configures the token authentication middleware.
type AuthConfig struct {
	// TokenValidator validates a token string and returns the claims.
	TokenValidator func(token string) (any, error)
	// Protected reports whether a request needs a token. Nil protects
	// every request.
	Protected func(r *http.Request) bool
	// BasicRealm, when set, is advertised on 401s for requests Basic
	// reports as true, so WebDAV clients prompt for credentials.
	BasicRealm string
	Basic      func(r *http.Request) bool
}

type claimsKey struct{}

// Claims returns the claims stored by Auth, or nil.
func Claims(ctx context.Context) any {
	return ctx.Value(claimsKey{})
}

// Auth validates a Bearer token on protected requests. The token is also
// accepted as the password of Basic credentials, with any user name, for
// clients that cannot send Bearer headers. Validated claims are stored in
// the request context. A nil validator disables the middleware.
func Auth(cfg AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		if cfg.TokenValidator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Protected != nil && !cfg.Protected(r) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, r, cfg, "Authorization header required.")
				return
			}
			claims, err := cfg.TokenValidator(token)
			if err != nil {
				unauthorized(w, r, cfg, "Invalid token.")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	if _, pass, ok := r.BasicAuth(); ok {
		return pass, pass != ""
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter, r *http.Request, cfg AuthConfig, reason string) {
	if cfg.BasicRealm != "" && cfg.Basic != nil && cfg.Basic(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="`+cfg.BasicRealm+`"`)
	} else {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeError(w, errors.Unauthorized(reason))
}
