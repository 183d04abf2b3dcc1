package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"harmony-go/internal/auth"
)

// contextKey is a private type for context values to avoid key collisions.
type contextKey string

// UserIDKey is the context key holding the authenticated user's id.
const UserIDKey contextKey = "userID"

// ClaimsKey is the context key holding the full JWT claims.
const ClaimsKey contextKey = "claims"

// AuthMiddleware validates the bearer JWT and injects the resolved actor into
// the request context. Handlers downstream only ever see the user id.
func AuthMiddleware(jwtKey string, blacklist auth.TokenBlacklist) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ValidateToken(r.Context(), headerParts[1], jwtKey, blacklist)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIDFromContext returns the authenticated user's id, if present.
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserIDKey).(uint)
	return userID, ok
}

// GetClaimsFromContext returns the full JWT claims, if present.
func GetClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims, ok
}
