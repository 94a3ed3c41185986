package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/go-chi/chi/v5"
)

type stubValidator map[string]*jwt.Claims

func (s stubValidator) ValidateAccess(_ context.Context, token string) (*jwt.Claims, error) {
	switch token {
	case "expired":
		return nil, authcore.ErrTokenExpired
	case "broken-backend":
		return nil, authcore.ErrUnavailable
	}
	c, ok := s[token]
	if !ok {
		return nil, authcore.ErrTokenMalformed
	}
	return c, nil
}

type stubAuthorizer struct {
	perms map[string][]string
	roles map[string][]string
}

func contains(have []string, want ...string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s stubAuthorizer) Authorize(_ context.Context, principalID string, required ...string) error {
	if !contains(s.perms[principalID], required...) {
		return authcore.ErrPermissionDenied
	}
	return nil
}

func (s stubAuthorizer) AuthorizeRole(_ context.Context, principalID string, roles ...string) error {
	for _, r := range roles {
		if contains(s.roles[principalID], r) {
			return nil
		}
	}
	return authcore.ErrPermissionDenied
}

func newRouter() http.Handler {
	v := stubValidator{
		"t-ada": {Subject: "ada", Kind: jwt.KindAccess, Access: &jwt.AccessFields{Email: "ada@example.com"}},
		"t-bob": {Subject: "bob", Kind: jwt.KindAccess, Access: &jwt.AccessFields{}},
	}
	a := stubAuthorizer{
		perms: map[string][]string{"ada": {"course:read", "course:write"}, "bob": {"course:read"}},
		roles: map[string][]string{"ada": {"instructor"}},
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(authcore.PrincipalIDFromContext(r.Context())))
	})

	r := chi.NewRouter()
	r.Use(Guard(v))
	r.Get("/me", ok)
	r.With(RequirePermissions(a, "course:write")).Get("/courses/edit", ok)
	r.With(RequireAnyRole(a, "instructor", "admin")).Get("/grades", ok)
	return r
}

func TestGuardAndGates(t *testing.T) {
	router := newRouter()
	tests := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{"missing header", "/me", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "/me", "Basic abc", http.StatusUnauthorized, ""},
		{"empty bearer", "/me", "Bearer   ", http.StatusUnauthorized, ""},
		{"malformed token", "/me", "Bearer nope", http.StatusUnauthorized, ""},
		{"expired token", "/me", "Bearer expired", http.StatusUnauthorized, ""},
		{"backend failure", "/me", "Bearer broken-backend", http.StatusInternalServerError, ""},
		{"valid token", "/me", "Bearer t-ada", http.StatusOK, "ada"},
		{"lowercase scheme", "/me", "bearer t-bob", http.StatusOK, "bob"},
		{"permission granted", "/courses/edit", "Bearer t-ada", http.StatusOK, "ada"},
		{"permission denied", "/courses/edit", "Bearer t-bob", http.StatusForbidden, ""},
		{"role granted", "/grades", "Bearer t-ada", http.StatusOK, "ada"},
		{"role denied", "/grades", "Bearer t-bob", http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d (%s)", tt.status, rec.Code, rec.Body.String())
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Fatalf("expected body %q, got %q", tt.body, rec.Body.String())
			}
			if rec.Code == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Fatal("expected WWW-Authenticate on 401")
			}
		})
	}
}

func TestGateWithoutGuardIsUnauthorized(t *testing.T) {
	h := RequirePermissions(stubAuthorizer{}, "x")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestNilValidator(t *testing.T) {
	h := Guard(nil)(http.NotFoundHandler())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer t")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
