package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scansetu/scansetu/cmd/scansetuctl/internal/config"
	"github.com/scansetu/scansetu/pkg/authctx"
	"github.com/scansetu/scansetu/pkg/guard"
	"github.com/scansetu/scansetu/pkg/sdk"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fakeAPI serves the endpoints the Manager touches. Profiles are keyed by
// user id; role is assigned from the admins set on upsert.
type fakeAPI struct {
	mu       sync.Mutex
	admins   map[string]bool
	profiles map[string]map[string]string
}

func newFakeAPI(admins ...string) *fakeAPI {
	f := &fakeAPI{admins: map[string]bool{}, profiles: map[string]map[string]string{}}
	for _, a := range admins {
		f.admins[a] = true
	}
	return f
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret123" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Invalid login credentials",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "access-" + body["email"],
			"token_type":    "bearer",
			"expires_in":    3600,
			"expires_at":    time.Now().Add(time.Hour).Unix(),
			"refresh_token": "refresh",
			"user":          map[string]any{"id": "id-" + body["email"], "email": body["email"]},
		})
	})
	mux.HandleFunc("PUT /rest/v1/profiles", func(w http.ResponseWriter, r *http.Request) {
		var row map[string]string
		_ = json.NewDecoder(r.Body).Decode(&row)
		role := "student"
		if f.admins[row["email"]] {
			role = "admin"
		}
		row["role"] = role
		f.mu.Lock()
		f.profiles[row["id"]] = row
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /rest/v1/profiles/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		row, ok := f.profiles[r.PathValue("id")]
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		writeJSON(w, http.StatusOK, row)
	})
	return mux
}

func openTest(t *testing.T, srv *httptest.Server, store sdk.CredentialStore) *Session {
	t.Helper()
	cfg := &config.GlobalConfig{ServerURL: srv.URL}
	sess, err := Open(context.Background(), cfg, Options{Store: store, Logger: zap.NewNop()})
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return sess
}

func TestSession_SignedOutLandsOnHome(t *testing.T) {
	srv := httptest.NewServer(newFakeAPI().handler())
	defer srv.Close()

	sess := openTest(t, srv, sdk.NewMemoryStore())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := sess.Manager.WaitReady(ctx)
	require.NoError(t, err)
	assert.Nil(t, state.Session)

	path, decision, err := guard.Navigate(state, "/dashboard")
	require.NoError(t, err)
	assert.Equal(t, guard.Render, decision.Outcome)
	assert.Equal(t, "/", path)
}

func TestSession_SignInProvisionsProfile(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		admins  []string
		role    authctx.Role
		landsOn string
	}{
		{name: "admin", email: "lead@example.com", admins: []string{"lead@example.com"}, role: authctx.RoleAdmin, landsOn: "/dashboard"},
		{name: "student", email: "priya@example.com", role: authctx.RoleStudent, landsOn: "/student"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(newFakeAPI(tt.admins...).handler())
			defer srv.Close()

			sess := openTest(t, srv, sdk.NewMemoryStore())
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			_, err := sess.Manager.WaitReady(ctx)
			require.NoError(t, err)

			require.NoError(t, sess.Manager.SignInWithCredentials(ctx, tt.email, "secret123"))
			state, err := sess.WaitFor(ctx, SignedIn("id-"+tt.email))
			require.NoError(t, err)

			require.NotNil(t, state.Profile)
			assert.Equal(t, state.UserID(), state.Profile.ID)
			assert.Equal(t, tt.role, state.Profile.Role)

			path, _, err := guard.Navigate(state, "/dashboard")
			require.NoError(t, err)
			assert.Equal(t, tt.landsOn, path)
		})
	}
}

func TestSession_BadPasswordKeepsSignedOut(t *testing.T) {
	srv := httptest.NewServer(newFakeAPI().handler())
	defer srv.Close()

	sess := openTest(t, srv, sdk.NewMemoryStore())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := sess.Manager.SignInWithCredentials(ctx, "priya@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid login credentials", err.Error())

	state, err := sess.Manager.WaitReady(ctx)
	require.NoError(t, err)
	assert.Nil(t, state.Session)
}

func TestSession_RestoresStoredCredentials(t *testing.T) {
	srv := httptest.NewServer(newFakeAPI().handler())
	defer srv.Close()

	store := sdk.NewMemoryStore()
	require.NoError(t, store.SaveCredentials(&sdk.Credentials{
		AccessToken:  "access",
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour),
		RefreshToken: "refresh",
		User:         sdk.User{ID: "id-priya@example.com", Email: "priya@example.com"},
	}))

	sess := openTest(t, srv, store)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	state, err := sess.WaitFor(ctx, SignedIn(""))
	require.NoError(t, err)
	assert.Equal(t, "id-priya@example.com", state.UserID())
	require.NotNil(t, state.Profile)
	assert.Equal(t, authctx.RoleStudent, state.Profile.Role)
}

func TestSignedIn(t *testing.T) {
	signedIn := authctx.State{Session: &authctx.Session{User: authctx.User{ID: "u1"}}}

	assert.True(t, SignedIn("")(signedIn))
	assert.True(t, SignedIn("u1")(signedIn))
	assert.False(t, SignedIn("u2")(signedIn))
	assert.False(t, SignedIn("")(authctx.State{}))

	loading := signedIn
	loading.Loading = true
	assert.False(t, SignedIn("u1")(loading))
}

func TestReturnPath(t *testing.T) {
	sess, err := New(&config.GlobalConfig{ServerURL: "http://127.0.0.1:0"}, Options{Store: sdk.NewMemoryStore(), Logger: zap.NewNop()})
	require.NoError(t, err)

	_, ok := sess.ReturnPath()
	assert.False(t, ok)

	sess.redirects <- "/dashboard"
	path, ok := sess.ReturnPath()
	assert.True(t, ok)
	assert.Equal(t, "/dashboard", path)
}
