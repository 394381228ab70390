package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// authMiddleware validates a Bearer token or Basic auth credentials using
// constant-time comparison. Rejections are logged at warn level.
func authMiddleware(cfg AuthConfig, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				rejectAuth(w, r, logger, "missing authorization header")
				return
			}

			if cfg.BearerToken != "" {
				if after, ok := strings.CutPrefix(auth, "Bearer "); ok && constantTimeEqual(after, cfg.BearerToken) {
					next.ServeHTTP(w, r)
					return
				}
			}

			if cfg.BasicUser != "" && cfg.BasicPass != "" {
				user, pass, ok := r.BasicAuth()
				if ok && constantTimeEqual(user, cfg.BasicUser) && constantTimeEqual(pass, cfg.BasicPass) {
					next.ServeHTTP(w, r)
					return
				}
			}

			rejectAuth(w, r, logger, "invalid credentials")
		})
	}
}

func rejectAuth(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, reason string) {
	logger.Warn().
		Str("remote_addr", r.RemoteAddr).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("reason", reason).
		Msg("gateway auth rejected")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
