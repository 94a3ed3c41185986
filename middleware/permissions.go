package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/authcore"
)

// Authorizer is satisfied by *authcore.Engine.
type Authorizer interface {
	Authorize(ctx context.Context, principalID string, required ...string) error
	AuthorizeRole(ctx context.Context, principalID string, roles ...string) error
}

// RequirePermissions admits principals holding every permission in required.
// It must be mounted after Guard.
func RequirePermissions(a Authorizer, required ...string) func(http.Handler) http.Handler {
	return gate(a, func(ctx context.Context, principalID string) error {
		return a.Authorize(ctx, principalID, required...)
	})
}

// RequireAnyRole admits principals holding at least one of roles.
func RequireAnyRole(a Authorizer, roles ...string) func(http.Handler) http.Handler {
	return gate(a, func(ctx context.Context, principalID string) error {
		return a.AuthorizeRole(ctx, principalID, roles...)
	})
}

func gate(a Authorizer, check func(ctx context.Context, principalID string) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				writeError(w, authcore.ErrEngineNotReady)
				return
			}
			principalID := authcore.PrincipalIDFromContext(r.Context())
			if principalID == "" {
				writeError(w, authcore.ErrInvalidToken)
				return
			}
			if err := check(r.Context(), principalID); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
