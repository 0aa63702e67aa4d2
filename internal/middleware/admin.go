package middleware

import (
	"crypto/subtle"
	"net/http"

	"consultas-gateway/pkg/logging/logging"
)

// AdminTokenHeader carries the admin token.
const AdminTokenHeader = "X-Admin-Token"

// AdminToken rejects requests whose X-Admin-Token does not match token. An
// empty token leaves the routes open.
func AdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AdminTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				logging.L(r.Context()).Warn("admin_token_rejected")
				writeError(w, http.StatusUnauthorized, "Token de administración inválido")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
