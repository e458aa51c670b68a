package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"passport-id/pkg/platform/httputil"
)

// AdminTokenHeader carries the operator token for /admin routes.
const AdminTokenHeader = "X-Admin-Token"

// RequireAdminToken guards operator routes with a shared token. An empty
// expectedToken refuses every request.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(AdminTokenHeader)
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", GetRequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{
					"error":             "unauthorized",
					"error_description": "admin token required",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
