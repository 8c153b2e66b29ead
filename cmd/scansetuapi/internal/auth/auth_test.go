package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestGenerateOpaqueToken(t *testing.T) {
	token, hash, err := GenerateOpaqueToken()
	require.NoError(t, err)
	assert.Len(t, token, TokenLength*2)
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashOpaqueToken(token))

	other, _, err := GenerateOpaqueToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)

	assert.NoError(t, CheckPassword(hash, "hunter22"))
	assert.ErrorIs(t, CheckPassword(hash, "hunter23"), ErrPasswordMismatch)
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	now := time.Date(2025, 9, 18, 13, 20, 0, 0, time.UTC)
	issuer.now = func() time.Time { return now }

	raw, expiresAt, err := issuer.Issue("user-1", "a@example.com", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expiresAt)

	claims, err := issuer.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "sess-1", claims.SessionID)

	t.Run("expired", func(t *testing.T) {
		later := NewTokenIssuer(testSecret, time.Hour)
		later.now = func() time.Time { return now.Add(2 * time.Hour) }
		_, err := later.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenIssuer("ffffffffffffffffffffffffffffffff", time.Hour)
		other.now = issuer.now
		_, err := other.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Verify("not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	ctx := SetPrincipal(context.Background(), Principal{UserID: "u", Role: "admin"})
	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u", p.UserID)
	assert.Equal(t, "admin", p.Role)
}

func TestVerifyPKCE(t *testing.T) {
	verifier := oauth2.GenerateVerifier()
	challenge := oauth2.S256ChallengeFromVerifier(verifier)

	assert.True(t, VerifyPKCE(challenge, verifier))
	assert.False(t, VerifyPKCE(challenge, oauth2.GenerateVerifier()))
	assert.False(t, VerifyPKCE(challenge, ""))
	assert.False(t, VerifyPKCE("", "anything"))
}

func TestSameRedirect(t *testing.T) {
	site := "https://scansetu.example.com"
	bound := site + "/dashboard"

	tests := []struct {
		name      string
		presented string
		want      bool
	}{
		{name: "path", presented: "/dashboard", want: true},
		{name: "absolute", presented: bound, want: true},
		{name: "code left on", presented: bound + "?code=abc", want: true},
		{name: "other page", presented: "/student"},
		{name: "other host", presented: "https://evil.io/dashboard"},
		{name: "missing", presented: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameRedirect(site, bound, tt.presented))
		})
	}
	assert.False(t, SameRedirect(site, "", "/dashboard"))
}

func TestAllowedRedirect(t *testing.T) {
	site := "https://scansetu.example.com"
	tests := []struct {
		redirect string
		allowed  bool
	}{
		{"http://127.0.0.1:53211/callback", true},
		{"http://localhost:4000/callback", true},
		{"https://scansetu.example.com/dashboard", true},
		{"https://scansetu.example.com", true},
		{"https://scansetu.example.com.evil.io/x", false},
		{"https://evil.io/callback", false},
		{"/dashboard", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, AllowedRedirect(site, tt.redirect), tt.redirect)
	}

	assert.Equal(t, site+"/dashboard", ResolveRedirect(site, "/dashboard"))
	assert.Equal(t, site+"/", ResolveRedirect(site, ""))
	assert.Equal(t, "http://127.0.0.1:1/callback", ResolveRedirect(site, "http://127.0.0.1:1/callback"))
}

func TestFlowCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetFlowCookies(rec, httptest.NewRequest(http.MethodGet, "/auth/v1/authorize", nil), FlowCookies{
		RedirectTo:    "http://127.0.0.1:5000/callback",
		CodeChallenge: "challenge",
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/v1/callback", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	cleared := httptest.NewRecorder()
	flow := TakeFlowCookies(cleared, req)
	assert.Equal(t, "http://127.0.0.1:5000/callback", flow.RedirectTo)
	assert.Equal(t, "challenge", flow.CodeChallenge)

	for _, c := range cleared.Result().Cookies() {
		assert.Empty(t, c.Value)
	}
}

func TestEnforcer(t *testing.T) {
	enforcer, err := InitEnforcer()
	require.NoError(t, err)

	tests := []struct {
		role  string
		obj   string
		act   string
		allow bool
	}{
		{"student", "/rest/v1/profiles", "PUT", true},
		{"student", "/rest/v1/profiles/abc", "GET", true},
		{"student", "/rest/v1/me/assignments", "GET", true},
		{"student", "/rest/v1/inventory/stats", "GET", false},
		{"admin", "/rest/v1/inventory/stats", "GET", true},
		{"admin", "/rest/v1/inventory/recent-activity", "GET", true},
		{"admin", "/rest/v1/me/assignments", "GET", true},
		{"admin", "/rest/v1/inventory/stats", "DELETE", false},
	}
	for _, tt := range tests {
		ok, err := enforcer.Enforce(RoleSubject(tt.role), tt.obj, tt.act)
		require.NoError(t, err)
		assert.Equal(t, tt.allow, ok, "%s %s %s", tt.role, tt.act, tt.obj)
	}
}
