package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dentalsettle/backend/internal/auth"
	"github.com/dentalsettle/backend/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	claimsKey  contextKey = "claims"
	sessionKey contextKey = "session"
)

// SiteHeader carries the site the caller is working on.
const SiteHeader = "X-Site-ID"

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	if c, ok := ctx.Value(claimsKey).(*auth.Claims); ok {
		return c.UserID
	}
	return ""
}

// GetSession returns the caller session stored by RequireSite.
func GetSession(ctx context.Context) (models.Session, bool) {
	s, ok := ctx.Value(sessionKey).(models.Session)
	return s, ok
}

// WithSession stores a session in ctx.
func WithSession(ctx context.Context, s models.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// RequireAuth returns a middleware that validates the Bearer token in the
// Authorization header and stores its claims in the request context.
func RequireAuth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				jsonError(w, http.StatusUnauthorized, auth.ErrMissingToken)
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || scheme != "Bearer" {
				jsonError(w, http.StatusUnauthorized, auth.ErrInvalidToken)
				return
			}

			claims, err := jwtManager.Validate(token)
			if err != nil {
				jsonError(w, http.StatusUnauthorized, err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

var errMissingSite = errors.New("X-Site-ID header must be a positive site id")

// RequireSite builds the caller session from the token claims and the
// X-Site-ID header. It must run after RequireAuth.
func RequireSite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(claimsKey).(*auth.Claims)
		if !ok {
			jsonError(w, http.StatusUnauthorized, auth.ErrMissingToken)
			return
		}

		siteID, err := strconv.ParseInt(r.Header.Get(SiteHeader), 10, 64)
		if err != nil || siteID <= 0 {
			jsonError(w, http.StatusBadRequest, errMissingSite)
			return
		}

		ctx := WithSession(r.Context(), claims.Session(siteID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
