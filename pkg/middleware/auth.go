package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fkhayef/settleup/internal/auth"
	"github.com/fkhayef/settleup/pkg/response"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// UserIDKey is the context key for the authenticated user ID
	UserIDKey ContextKey = "user_id"

	// DevUserHeader names the caller directly when running with AUTH_MODE=dev.
	DevUserHeader = "X-User-ID"
)

// Authenticator resolves the calling user for every request under /api/v1.
// In jwt mode the caller presents "Authorization: Bearer <token>"; in dev
// mode the user id is taken verbatim from the X-User-ID header.
type Authenticator struct {
	devMode bool
	jwt     *auth.JWTManager
}

// NewAuthenticator returns a JWT authenticator, or a dev one when jwt is nil.
func NewAuthenticator(jwt *auth.JWTManager) *Authenticator {
	return &Authenticator{devMode: jwt == nil, jwt: jwt}
}

// Middleware rejects requests without an identifiable user with 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.resolve(r)
		if err != nil {
			slog.Debug("unauthenticated request", "path", r.URL.Path, "error", err)
			response.Unauthorized(w, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func (a *Authenticator) resolve(r *http.Request) (string, error) {
	if a.devMode {
		userID := strings.TrimSpace(r.Header.Get(DevUserHeader))
		if userID == "" {
			return "", errors.New(DevUserHeader + " header required")
		}
		return userID, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", auth.ErrMissingToken
	}

	// Extract token from "Bearer <token>"
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.New("invalid authorization header format")
	}

	claims, err := a.jwt.Validate(strings.TrimSpace(token))
	if err != nil {
		return "", auth.ErrInvalidToken
	}
	return claims.UserID, nil
}

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID extracts the user ID from the request context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}
