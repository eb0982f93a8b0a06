package middleware

import (
	"net/http"

	"github.com/rekur/backend/internal/contextkeys"
	"github.com/rekur/backend/internal/domain"
	"github.com/rekur/backend/internal/handler"
)

// AdminOnly rejects callers whose token does not carry the admin role.
// It must run after Auth.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contextkeys.UserRoleFrom(r.Context()) != domain.RoleAdmin {
			handler.JSON(w, http.StatusForbidden, map[string]string{"error": "forbidden: admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
