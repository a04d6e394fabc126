package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/bryanwahyu/docguard/internal/logging"
)

type contextKey string

const (
	PrincipalKey contextKey = "principal"
)

// Principal is the authenticated caller behind an API key.
type Principal struct {
	UserID int64
	Admin  bool
}

// APIKeyAuth validates API key from Authorization header. keys maps each
// API key to the user it authenticates.
func APIKeyAuth(keys map[string]Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract API key from Authorization header
			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			// Support both "Bearer <key>" and "<key>" formats
			apiKey := strings.TrimPrefix(auth, "Bearer ")
			apiKey = strings.TrimSpace(apiKey)

			if apiKey == "" {
				writeError(w, http.StatusUnauthorized, "invalid Authorization header format")
				return
			}

			// Validate API key (constant-time comparison to prevent timing attacks)
			valid := false
			var p Principal
			for key, principal := range keys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
					valid = true
					p = principal
					break
				}
			}

			if !valid {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			ctx := WithPrincipal(r.Context(), p)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With("user_id", p.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// GetPrincipalFromContext extracts the caller from context
func GetPrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(Principal)
	return p, ok
}

// GetUserFromContext returns the authenticated user id, 0 when anonymous.
func GetUserFromContext(ctx context.Context) int64 {
	p, _ := GetPrincipalFromContext(ctx)
	return p.UserID
}

// RequireAdmin rejects callers without the admin flag.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := GetPrincipalFromContext(r.Context())
		if !ok || !p.Admin {
			writeError(w, http.StatusForbidden, "admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
