package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/estimategame/internal/api/apierr"
	"github.com/mcoot/estimategame/internal/services/auth"
)

type contextKey string

const identityContextKey contextKey = "identity"

// TokenValidator resolves player tokens
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*auth.Identity, error)
}

// Auth creates authentication middleware
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthenticatedError())
				return
			}

			identity, err := validator.Validate(r.Context(), token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth extracts the identity if present but doesn't require it
func OptionalAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token != "" {
				if identity, err := validator.Validate(r.Context(), token); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), identityContextKey, identity))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken extracts the player token from the request
func extractToken(r *http.Request) string {
	// Check Authorization header first
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	// EventSource and WebSocket clients in browsers cannot set headers
	return r.URL.Query().Get("token")
}

// GetIdentity returns the authenticated identity from the request context
func GetIdentity(ctx context.Context) *auth.Identity {
	identity, _ := ctx.Value(identityContextKey).(*auth.Identity)
	return identity
}

// MustGetIdentity returns the authenticated identity or panics
func MustGetIdentity(ctx context.Context) *auth.Identity {
	identity := GetIdentity(ctx)
	if identity == nil {
		panic("no identity in context - auth middleware not applied?")
	}
	return identity
}
