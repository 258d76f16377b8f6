package middleware

import (
	"context"
	"net/http"
	"strings"

	"edupro/internal/util"

	"github.com/rs/zerolog"
)

// Injected key type to avoid context collisions
type contextKey string

const AdminContextKey = contextKey("admin")

// AuthMiddleware admits requests carrying a valid admin bearer token.
func AuthMiddleware(jwtSecret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn().Str("path", r.URL.Path).Msg("Authorization header missing")
				http.Error(w, "Authorization header missing", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Warn().Str("path", r.URL.Path).Msg("Invalid authorization header")
				http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := util.ValidateJWT(parts[1], jwtSecret)
			if err != nil {
				logger.Warn().Err(err).Msg("Invalid token")
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			if claims.Role != util.RoleAdmin {
				logger.Warn().Str("subject", claims.Subject).Msg("Token lacks admin role")
				http.Error(w, "Admin access required", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), AdminContextKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminFromContext returns the admin email set by AuthMiddleware.
func AdminFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(AdminContextKey).(string)
	return email, ok && email != ""
}
