package sdk_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/scansetu/scansetu/pkg/authctx"
	"github.com/scansetu/scansetu/pkg/sdk"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func tokenBody(access, refresh, userID, email string) map[string]any {
	return map[string]any{
		"access_token":  access,
		"token_type":    "bearer",
		"expires_in":    3600,
		"expires_at":    time.Now().Add(time.Hour).Unix(),
		"refresh_token": refresh,
		"user": map[string]any{
			"id":            userID,
			"email":         email,
			"user_metadata": map[string]any{"full_name": "Asha Rao"},
		},
	}
}

// recorder collects notifications delivered by the dispatcher.
type recorder struct {
	mu     sync.Mutex
	events []authctx.Event
}

func (r *recorder) add(ev authctx.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []authctx.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]authctx.EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) last() authctx.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func startAuth(t *testing.T, srv *httptest.Server, opts ...sdk.AuthOption) (*sdk.Auth, sdk.CredentialStore, *recorder) {
	t.Helper()
	store := sdk.NewMemoryStore()
	client := sdk.NewClient(srv.URL, sdk.WithCredentialStore(store))
	auth := sdk.NewAuth(client, opts...)
	rec := &recorder{}
	auth.OnSessionChange(rec.add)
	auth.Start(context.Background())
	t.Cleanup(auth.Close)
	return auth, store, rec
}

func TestSignInWithPassword(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "secret123" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Invalid login credentials",
			})
			return
		}
		writeJSON(w, http.StatusOK, tokenBody("access-1", "refresh-1", "user-1", body["email"]))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	auth, store, rec := startAuth(t, srv)
	ctx := context.Background()

	err := auth.SignInWithPassword(ctx, "a@x.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid login credentials", err.Error())
	var apiErr *sdk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	require.NoError(t, auth.SignInWithPassword(ctx, "a@x.com", "secret123"))

	creds, err := store.LoadCredentials()
	require.NoError(t, err)
	assert.Equal(t, "access-1", creds.AccessToken)
	assert.Equal(t, "user-1", creds.User.ID)

	require.Eventually(t, func() bool { return len(rec.kinds()) == 1 }, time.Second, 5*time.Millisecond)
	ev := rec.last()
	assert.Equal(t, authctx.EventSignedIn, ev.Kind)
	require.NotNil(t, ev.Session)
	assert.Equal(t, "user-1", ev.Session.User.ID)
	assert.Equal(t, "Asha Rao", ev.Session.User.FullName)

	session, err := auth.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "a@x.com", session.User.Email)
}

func TestSignUp(t *testing.T) {
	t.Run("unconfirmed user", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /auth/v1/signup", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Email string            `json:"email"`
				Data  map[string]string `json:"data"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Asha Rao", body.Data["full_name"])
			writeJSON(w, http.StatusOK, map[string]any{
				"user":    map[string]any{"id": "user-1", "email": body.Email, "email_confirmed_at": nil},
				"session": nil,
			})
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		auth, store, rec := startAuth(t, srv)
		res, err := auth.SignUp(context.Background(), "a@x.com", "secret123", "Asha Rao")
		require.NoError(t, err)
		assert.True(t, res.UserCreated)
		assert.Nil(t, res.EmailConfirmedAt)

		_, err = store.LoadCredentials()
		assert.ErrorIs(t, err, sdk.ErrNoCredentials)
		assert.Empty(t, rec.kinds())
	})

	t.Run("duplicate", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /auth/v1/signup", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":             "user_already_exists",
				"error_description": "User already registered",
			})
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		auth, _, _ := startAuth(t, srv)
		_, err := auth.SignUp(context.Background(), "a@x.com", "secret123", "")
		require.EqualError(t, err, "User already registered")
	})
}

func TestSignOut_ClearsLocallyWhenServerFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	auth, store, rec := startAuth(t, srv)
	require.NoError(t, store.SaveCredentials(&sdk.Credentials{
		AccessToken: "access-1",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        sdk.User{ID: "user-1"},
	}))

	err := auth.SignOut(context.Background())
	require.Error(t, err)

	_, err = store.LoadCredentials()
	assert.ErrorIs(t, err, sdk.ErrNoCredentials)
	require.Eventually(t, func() bool { return len(rec.kinds()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, authctx.EventSignedOut, rec.last().Kind)
	assert.Nil(t, rec.last().Session)
}

func TestGetSession(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		auth, _, _ := startAuth(t, srv)
		session, err := auth.GetSession(context.Background())
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("refreshes near expiry", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
			writeJSON(w, http.StatusOK, tokenBody("access-2", "refresh-2", "user-1", "a@x.com"))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		auth, store, rec := startAuth(t, srv)
		require.NoError(t, store.SaveCredentials(&sdk.Credentials{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresAt:    time.Now().Add(10 * time.Second),
			User:         sdk.User{ID: "user-1"},
		}))

		session, err := auth.GetSession(context.Background())
		require.NoError(t, err)
		require.NotNil(t, session)

		creds, err := store.LoadCredentials()
		require.NoError(t, err)
		assert.Equal(t, "refresh-2", creds.RefreshToken)
		require.Eventually(t, func() bool { return len(rec.kinds()) == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, authctx.EventTokenRefreshed, rec.last().Kind)
	})

	t.Run("rejected refresh ends the session", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Invalid Refresh Token",
			})
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		auth, store, rec := startAuth(t, srv)
		require.NoError(t, store.SaveCredentials(&sdk.Credentials{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresAt:    time.Now().Add(-time.Minute),
			User:         sdk.User{ID: "user-1"},
		}))

		session, err := auth.GetSession(context.Background())
		require.NoError(t, err)
		assert.Nil(t, session)
		_, err = store.LoadCredentials()
		assert.ErrorIs(t, err, sdk.ErrNoCredentials)
		require.Eventually(t, func() bool { return len(rec.kinds()) == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, authctx.EventSignedOut, rec.last().Kind)
	})
}

func TestEventStream_RemoteSignOut(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/v1/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(map[string]string{"event": "SIGNED_OUT", "user_id": "user-1"})
		_, _, _ = conn.ReadMessage()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := sdk.NewMemoryStore()
	require.NoError(t, store.SaveCredentials(&sdk.Credentials{
		AccessToken: "access-1",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        sdk.User{ID: "user-1"},
	}))
	auth := sdk.NewAuth(sdk.NewClient(srv.URL, sdk.WithCredentialStore(store)))
	rec := &recorder{}
	auth.OnSessionChange(rec.add)
	auth.Start(context.Background())
	defer auth.Close()

	require.Eventually(t, func() bool { return len(rec.kinds()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, authctx.EventSignedOut, rec.last().Kind)
	_, err := store.LoadCredentials()
	assert.ErrorIs(t, err, sdk.ErrNoCredentials)
}

func TestSignInWithOAuth_LoopbackFlow(t *testing.T) {
	var (
		mu        sync.Mutex
		challenge string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/v1/authorize", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "google", q.Get("provider"))
		assert.Equal(t, "S256", q.Get("code_challenge_method"))
		mu.Lock()
		challenge = q.Get("code_challenge")
		mu.Unlock()
		http.Redirect(w, r, q.Get("redirect_to")+"?code=flow-code", http.StatusFound)
	})
	mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pkce", r.URL.Query().Get("grant_type"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "flow-code", body["auth_code"])
		mu.Lock()
		assert.Equal(t, challenge, oauth2.S256ChallengeFromVerifier(body["code_verifier"]))
		mu.Unlock()
		writeJSON(w, http.StatusOK, tokenBody("access-1", "refresh-1", "user-1", "a@x.com"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var redirected string
	browser := func(u string) {
		go func() {
			resp, err := http.Get(u)
			if err == nil {
				resp.Body.Close()
			}
		}()
	}
	auth, store, rec := startAuth(t, srv,
		sdk.WithBrowserOpener(browser),
		sdk.WithRedirectHandler(func(p string) { redirected = p }))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, auth.SignInWithOAuth(ctx, "google", "/dashboard"))

	assert.Equal(t, "/dashboard", redirected)
	creds, err := store.LoadCredentials()
	require.NoError(t, err)
	assert.Equal(t, "access-1", creds.AccessToken)
	require.Eventually(t, func() bool { return len(rec.kinds()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, authctx.EventSignedIn, rec.last().Kind)
}
