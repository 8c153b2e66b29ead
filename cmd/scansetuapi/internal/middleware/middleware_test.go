package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/auth"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/services/identity"
)

type fakeAuthenticator struct {
	principals map[string]auth.Principal
	err        error
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, token string) (auth.Principal, error) {
	if f.err != nil {
		return auth.Principal{}, f.err
	}
	p, ok := f.principals[token]
	if !ok {
		return auth.Principal{}, identity.ErrBadJWT
	}
	return p, nil
}

type fakeRoles struct {
	roles map[string]string
	calls int
}

func (f *fakeRoles) Role(_ context.Context, userID string) (string, error) {
	f.calls++
	if role, ok := f.roles[userID]; ok {
		return role, nil
	}
	return "student", nil
}

func newTestRouter(t *testing.T, roles *fakeRoles) (http.Handler, *Authn) {
	t.Helper()
	authn, err := NewAuthn(AuthnDependencies{
		Authenticator: &fakeAuthenticator{principals: map[string]auth.Principal{
			"student-token": {UserID: "u-student", Email: "s@example.com", SessionID: "s1"},
			"admin-token":   {UserID: "u-admin", Email: "a@example.com", SessionID: "s2"},
		}},
		Roles: roles,
	})
	require.NoError(t, err)

	enforcer, err := auth.InitEnforcer()
	require.NoError(t, err)
	authz, err := NewAuthz(enforcer, nil)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(authn.Middleware, authz)
		ok := func(w http.ResponseWriter, r *http.Request) {
			p, _ := auth.PrincipalFromContext(r.Context())
			_, _ = w.Write([]byte(p.Role))
		}
		r.Get("/rest/v1/inventory/stats", ok)
		r.Get("/rest/v1/me/assignments", ok)
	})
	return r, authn
}

func do(h http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthnAuthz(t *testing.T) {
	roles := &fakeRoles{roles: map[string]string{"u-admin": "admin"}}
	h, _ := newTestRouter(t, roles)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
		code   string
	}{
		{"no token", "/rest/v1/me/assignments", "", http.StatusUnauthorized, "unauthorized"},
		{"bad token", "/rest/v1/me/assignments", "nope", http.StatusUnauthorized, "bad_jwt"},
		{"student own data", "/rest/v1/me/assignments", "student-token", http.StatusOK, ""},
		{"student admin route", "/rest/v1/inventory/stats", "student-token", http.StatusForbidden, "insufficient_role"},
		{"admin admin route", "/rest/v1/inventory/stats", "admin-token", http.StatusOK, ""},
		{"admin inherits student", "/rest/v1/me/assignments", "admin-token", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, tt.path, tt.token)
			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				var body ErrorBody
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.code, body.Code)
				assert.NotEmpty(t, body.Description)
			}
		})
	}
}

func TestAuthn_RoleCache(t *testing.T) {
	roles := &fakeRoles{roles: map[string]string{}}
	h, authn := newTestRouter(t, roles)

	assert.Equal(t, http.StatusForbidden, do(h, "/rest/v1/inventory/stats", "admin-token").Code)
	assert.Equal(t, 1, roles.calls)

	// promoted, but the cached role still applies until invalidated
	roles.roles["u-admin"] = "admin"
	assert.Equal(t, http.StatusForbidden, do(h, "/rest/v1/inventory/stats", "admin-token").Code)
	assert.Equal(t, 1, roles.calls)

	authn.InvalidateRole("u-admin")
	rec := do(h, "/rest/v1/inventory/stats", "admin-token")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", rec.Body.String())
	assert.Equal(t, 2, roles.calls)
}

func TestAuthn_InternalError(t *testing.T) {
	authn, err := NewAuthn(AuthnDependencies{
		Authenticator: &fakeAuthenticator{err: errors.New("db down")},
		Roles:         &fakeRoles{},
	})
	require.NoError(t, err)

	rec := do(authn.Middleware(http.NotFoundHandler()), "/x", "token")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", tt.header)
		token, ok := BearerToken(req)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}

func TestNewAuthnRequiresDependencies(t *testing.T) {
	_, err := NewAuthn(AuthnDependencies{Roles: &fakeRoles{}})
	assert.Error(t, err)
	_, err = NewAuthn(AuthnDependencies{Authenticator: &fakeAuthenticator{}})
	assert.Error(t, err)
	_, err = NewAuthz(nil, nil)
	assert.Error(t, err)
}
