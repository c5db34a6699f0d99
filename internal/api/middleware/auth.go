package middleware

import (
	"net/http"
	"strings"

	"github.com/mcoot/smartkiosk/internal/api/apierr"
	"github.com/mcoot/smartkiosk/internal/services/auth"
)

// AdminAuth creates middleware requiring a valid admin key
func AdminAuth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authService.Enabled() {
				apierr.WriteError(w, auth.ErrAdminDisabled)
				return
			}

			key := extractToken(r)
			if key == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			if err := authService.Verify(key); err != nil {
				apierr.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken extracts the bearer key from the request
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
