package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/auth"
	"github.com/example/ec-shop/internal/logger"
)

const accessTokenCookie = "access_token"

type contextKey string

const UserContextKey contextKey = "user"

// writeError writes the failure envelope shared with the handlers.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

// ExtractToken returns the access token from the access_token cookie, or
// failing that from a Bearer Authorization header.
func ExtractToken(r *http.Request) string {
	if c, err := r.Cookie(accessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticate rejects requests without a valid access token with 401. The
// claims of accepted requests are put on the context, and the request logger
// gains a user_id attribute.
func Authenticate(verifier *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := ExtractToken(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, apperror.CodeUnauthorized, "not authorized, no token")
				return
			}
			claims, err := verifier.ValidateAccessToken(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, apperror.CodeUnauthorized, "not authorized, "+err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

func withClaims(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, UserContextKey, claims)
	ctx = logger.WithUserID(ctx, claims.UserID)
	return logger.NewContext(ctx, logger.FromContext(ctx, nil).With("user_id", claims.UserID))
}

// RequireRole lets through authenticated callers holding one of roles. It
// must run after Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			switch {
			case !ok:
				writeError(w, http.StatusUnauthorized, apperror.CodeUnauthorized, "not authorized")
			case !claims.HasRole(roles...):
				writeError(w, http.StatusForbidden, apperror.CodeForbidden, "not authorized for this resource")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*auth.Claims)
	return claims, ok && claims != nil
}
