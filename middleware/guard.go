package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/jwt"
)

// Validator is satisfied by *authcore.Engine.
type Validator interface {
	ValidateAccess(ctx context.Context, accessToken string) (*jwt.Claims, error)
}

// Guard rejects requests without a valid access token and attaches the
// validated claims to the request context.
func Guard(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				writeError(w, authcore.ErrEngineNotReady)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, authcore.ErrInvalidToken)
				return
			}

			claims, err := v.ValidateAccess(r.Context(), token)
			if err != nil {
				writeError(w, err)
				return
			}

			ctx := authcore.WithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

// writeError maps err's kind to a status code. Bodies are generic so token
// state is never disclosed.
func writeError(w http.ResponseWriter, err error) {
	switch authcore.KindOf(err) {
	case authcore.KindUnauthenticated, authcore.KindValidation:
		w.Header().Set("WWW-Authenticate", `Bearer realm="authcore"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case authcore.KindForbidden:
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
