package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type contextKey string

const userIDKey contextKey = "user_id"

// publicPaths skip identity and rate limiting.
var publicPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/live":    true,
	"/metrics": true,
}

// IsPublicPath reports whether path is served without an API key.
func IsPublicPath(path string) bool { return publicPaths[path] }

// APIKeyAuth resolves "Authorization: Bearer <key>" to a user id through the
// configured key table.
func APIKeyAuth(keys map[string]int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			apiKey, msg := bearerKey(r)
			if apiKey == "" {
				http.Error(w, msg, http.StatusUnauthorized)
				return
			}

			var userID int64
			for key, id := range keys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
					userID = id
					break
				}
			}
			if userID == 0 {
				http.Error(w, "invalid API key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// RequireAdminKey lets a request through only when its key is one of
// adminKeys. It runs after APIKeyAuth, so the key is already known to be valid.
func RequireAdminKey(adminKeys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, msg := bearerKey(r)
			if apiKey == "" {
				http.Error(w, msg, http.StatusUnauthorized)
				return
			}
			for _, key := range adminKeys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "admin API key required", http.StatusForbidden)
		})
	}
}

// bearerKey extracts the API key, or returns "" and a reason.
func bearerKey(r *http.Request) (string, string) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", "missing Authorization header"
	}
	// "Bearer <key>" and "<key>" are both accepted
	apiKey := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	if apiKey == "" {
		return "", "invalid Authorization header format"
	}
	return apiKey, ""
}

// WithUserID stores the caller's user id.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext returns the id set by APIKeyAuth.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}
