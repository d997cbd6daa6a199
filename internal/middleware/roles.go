package middleware

import (
	"net/http"

	"github.com/baharkarakas/wallet-engine/internal/api/httpx"
)

// RequireRole wraps a handler and allows only the given role.
func RequireRole(need string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := FromCtx(r.Context())
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
				return
			}
			if u.Role != need {
				httpx.WriteError(w, http.StatusForbidden, "forbidden", "requires role "+need, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
