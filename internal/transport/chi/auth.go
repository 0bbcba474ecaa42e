package chi

import (
	"net/http"
	"strings"
)

// AdminAuthMiddleware returns a middleware that validates Bearer tokens or an
// X-API-Key header against the configured admin keys. If adminKeys is empty,
// authentication is disabled (pass-through).
func AdminAuthMiddleware(adminKeys []string) func(http.Handler) http.Handler {
	validKeys := make(map[string]struct{}, len(adminKeys))
	for _, k := range adminKeys {
		if k != "" {
			validKeys[k] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		// Auth disabled — pass everything through
		if len(validKeys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-API-Key")
			if token == "" {
				auth := r.Header.Get("Authorization")
				const bearerPrefix = "Bearer "
				if !strings.HasPrefix(auth, bearerPrefix) {
					writeError(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
					return
				}
				token = auth[len(bearerPrefix):]
			}

			if _, ok := validKeys[token]; !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
