package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/rekur/backend/internal/handler"
	"github.com/rs/zerolog/log"
)

// CronAuth guards scheduler endpoints with a shared bearer secret.
// An unset secret fails closed with 500.
func CronAuth(secret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				log.Error().Msg("CRON_SECRET is not configured")
				handler.JSON(w, http.StatusInternalServerError, map[string]string{"error": "cron secret not configured"})
				return
			}
			token, ok := bearerToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				handler.JSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
