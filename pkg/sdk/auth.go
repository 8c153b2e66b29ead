package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zitadel/oidc/v3/pkg/client/rp/cli"
	"go.uber.org/zap"

	"github.com/scansetu/scansetu/pkg/authctx"
)

const (
	defaultRefreshMargin = 60 * time.Second
	defaultTickInterval  = 10 * time.Second
	eventQueueSize       = 32
)

// Auth is the Session Store backed by the API server. It persists
// credentials, refreshes them ahead of expiry and relays server-side session
// changes (remote sign-out, role updates) to subscribers. Notifications are
// delivered by a single dispatcher goroutine in the order they were raised.
type Auth struct {
	client *Client
	store  CredentialStore
	logger *zap.Logger

	refreshMargin time.Duration
	tickInterval  time.Duration
	openBrowser   func(string)
	onRedirect    func(string)
	dialer        *websocket.Dialer

	mu        sync.Mutex
	listeners map[int]func(authctx.Event)
	nextID    int
	conn      *websocket.Conn

	refreshMu sync.Mutex

	queue     chan authctx.Event
	wake      chan struct{}
	done      chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

var _ authctx.SessionStore = (*Auth)(nil)

// AuthOption configures an Auth.
type AuthOption func(*Auth)

// WithRefreshMargin sets how long before expiry the access token is renewed.
func WithRefreshMargin(d time.Duration) AuthOption {
	return func(a *Auth) { a.refreshMargin = d }
}

// WithTickInterval sets how often the refresher checks token expiry.
func WithTickInterval(d time.Duration) AuthOption {
	return func(a *Auth) { a.tickInterval = d }
}

// WithBrowserOpener replaces the function used to open the OAuth consent
// page. Defaults to the system browser.
func WithBrowserOpener(fn func(string)) AuthOption {
	return func(a *Auth) { a.openBrowser = fn }
}

// WithRedirectHandler registers fn to receive the return path once a
// redirect-based sign-in completes.
func WithRedirectHandler(fn func(path string)) AuthOption {
	return func(a *Auth) { a.onRedirect = fn }
}

// NewAuth creates a Session Store over client. Call Start before relying on
// notifications.
func NewAuth(client *Client, opts ...AuthOption) *Auth {
	a := &Auth{
		client:        client,
		store:         client.store,
		logger:        client.logger.Named("auth"),
		refreshMargin: defaultRefreshMargin,
		tickInterval:  defaultTickInterval,
		openBrowser:   cli.OpenBrowser,
		dialer:        websocket.DefaultDialer,
		listeners:     make(map[int]func(authctx.Event)),
		queue:         make(chan authctx.Event, eventQueueSize),
		wake:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start launches the dispatcher, the token refresher and the server event
// stream. It is a no-op after the first call.
func (a *Auth) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		a.cancel = cancel
		a.wg.Add(3)
		go func() { defer a.wg.Done(); a.dispatch(ctx) }()
		go func() { defer a.wg.Done(); a.autoRefresh(ctx) }()
		go func() { defer a.wg.Done(); a.streamEvents(ctx) }()
	})
}

// Close stops background work. Pending notifications are dropped.
func (a *Auth) Close() {
	a.closeOnce.Do(func() {
		close(a.done)
		if a.cancel != nil {
			a.cancel()
		}
		a.dropConn()
		a.wg.Wait()
	})
}

// OnSessionChange implements authctx.SessionStore.
func (a *Auth) OnSessionChange(fn func(authctx.Event)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}

func (a *Auth) emit(kind authctx.EventKind, creds *Credentials) {
	ev := authctx.Event{Kind: kind}
	if creds != nil {
		ev.Session = creds.session()
	}
	select {
	case a.queue <- ev:
	case <-a.done:
	}
}

func (a *Auth) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.queue:
			a.mu.Lock()
			ids := make([]int, 0, len(a.listeners))
			for id := range a.listeners {
				ids = append(ids, id)
			}
			fns := make([]func(authctx.Event), 0, len(ids))
			slices.Sort(ids)
			for _, id := range ids {
				fns = append(fns, a.listeners[id])
			}
			a.mu.Unlock()
			for _, fn := range fns {
				fn(ev)
			}
		}
	}
}

// GetSession implements authctx.SessionStore. An access token close to
// expiry is refreshed first; a refresh the server rejects ends the session.
func (a *Auth) GetSession(ctx context.Context) (*authctx.Session, error) {
	creds, err := a.store.LoadCredentials()
	if errors.Is(err, ErrNoCredentials) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if creds.RefreshToken != "" && creds.expiresWithin(a.refreshMargin) {
		next, err := a.refresh(ctx, creds)
		switch {
		case err == nil:
			creds = next
		case isClientError(err):
			return nil, nil
		case creds.IsExpired():
			return nil, err
		default:
			a.logger.Warn("token refresh failed, using current token", zap.Error(err))
		}
	}
	return creds.session(), nil
}

// SignInWithPassword implements authctx.SessionStore.
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) error {
	var resp tokenResponse
	err := a.token(ctx, "password", map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return err
	}
	return a.signedIn(&resp)
}

// SignUp implements authctx.SessionStore. When the server confirms emails
// automatically the response carries a session and the user is signed in
// immediately.
func (a *Auth) SignUp(ctx context.Context, email, password, fullName string) (*authctx.SignUpResult, error) {
	body := map[string]any{"email": email, "password": password}
	if fullName != "" {
		body["data"] = map[string]string{"full_name": fullName}
	}
	var resp struct {
		User    *User          `json:"user"`
		Session *tokenResponse `json:"session"`
	}
	if err := a.client.do(ctx, a.client.http, http.MethodPost, "/auth/v1/signup", nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.Session != nil {
		if err := a.signedIn(resp.Session); err != nil {
			return nil, err
		}
	}
	res := &authctx.SignUpResult{UserCreated: resp.User != nil}
	if resp.User != nil {
		res.EmailConfirmedAt = resp.User.EmailConfirmedAt
	}
	return res, nil
}

// SendMagicLink implements authctx.SessionStore.
func (a *Auth) SendMagicLink(ctx context.Context, email, returnPath string) error {
	body := map[string]string{"email": email, "redirect_to": returnPath}
	return a.client.do(ctx, a.client.http, http.MethodPost, "/auth/v1/otp", nil, body, nil)
}

// VerifyOTP completes a magic-link or sign-up confirmation using the token
// from the emailed link.
func (a *Auth) VerifyOTP(ctx context.Context, kind, token string) error {
	var resp tokenResponse
	body := map[string]string{"type": kind, "token": token}
	if err := a.client.do(ctx, a.client.http, http.MethodPost, "/auth/v1/verify", nil, body, &resp); err != nil {
		return err
	}
	return a.signedIn(&resp)
}

// ExchangeCode trades a one-time flow code for a session. Pass the PKCE
// verifier for OAuth returns, or the URL the code arrived at for emailed
// links.
func (a *Auth) ExchangeCode(ctx context.Context, code, verifier, redirectTo string) error {
	var resp tokenResponse
	body := map[string]string{"auth_code": code, "code_verifier": verifier}
	if redirectTo != "" {
		body["redirect_to"] = redirectTo
	}
	err := a.token(ctx, "pkce", body, &resp)
	if err != nil {
		return err
	}
	return a.signedIn(&resp)
}

// SignOut implements authctx.SessionStore. Local credentials are removed
// whatever the server answers; the server's error is still returned.
func (a *Auth) SignOut(ctx context.Context) error {
	var remoteErr error
	if _, err := a.store.LoadCredentials(); err == nil {
		remoteErr = a.client.do(ctx, a.client.authed, http.MethodPost, "/auth/v1/logout",
			url.Values{"scope": {"local"}}, nil, nil)
		if IsUnauthorized(remoteErr) {
			remoteErr = nil
		}
	}
	a.clear()
	a.emit(authctx.EventSignedOut, nil)
	return remoteErr
}

// User fetches the signed-in user from the server.
func (a *Auth) User(ctx context.Context) (*User, error) {
	var u User
	if err := a.client.do(ctx, a.client.authed, http.MethodGet, "/auth/v1/user", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Credentials returns the stored credentials or ErrNoCredentials.
func (a *Auth) Credentials() (*Credentials, error) {
	return a.store.LoadCredentials()
}

func (a *Auth) token(ctx context.Context, grant string, body map[string]string, out *tokenResponse) error {
	return a.client.do(ctx, a.client.http, http.MethodPost, "/auth/v1/token",
		url.Values{"grant_type": {grant}}, body, out)
}

func (a *Auth) signedIn(resp *tokenResponse) error {
	creds := resp.credentials()
	if err := a.store.SaveCredentials(creds); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	a.resetStream()
	a.emit(authctx.EventSignedIn, creds)
	return nil
}

func (a *Auth) clear() {
	if err := a.store.DeleteCredentials(); err != nil {
		a.logger.Warn("delete credentials failed", zap.Error(err))
	}
	a.dropConn()
}

// refresh rotates the refresh token. Concurrent callers holding the same
// token share one rotation.
func (a *Auth) refresh(ctx context.Context, seen *Credentials) (*Credentials, error) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	current, err := a.store.LoadCredentials()
	if err != nil {
		return nil, err
	}
	if current.RefreshToken != seen.RefreshToken {
		return current, nil
	}

	var resp tokenResponse
	err = a.token(ctx, "refresh_token", map[string]string{"refresh_token": current.RefreshToken}, &resp)
	if err != nil {
		if isClientError(err) {
			a.logger.Warn("refresh token rejected, signing out", zap.Error(err))
			a.clear()
			a.emit(authctx.EventSignedOut, nil)
		}
		return nil, err
	}

	next := resp.credentials()
	if err := a.store.SaveCredentials(next); err != nil {
		return nil, fmt.Errorf("save credentials: %w", err)
	}
	a.emit(authctx.EventTokenRefreshed, next)
	return next, nil
}

func (a *Auth) autoRefresh(ctx context.Context) {
	ticker := time.NewTicker(a.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			creds, err := a.store.LoadCredentials()
			if err != nil || creds.RefreshToken == "" || !creds.expiresWithin(a.refreshMargin) {
				continue
			}
			if _, err := a.refresh(ctx, creds); err != nil && ctx.Err() == nil {
				a.logger.Warn("background token refresh failed", zap.Error(err))
			}
		}
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

func (r *tokenResponse) credentials() *Credentials {
	expiresAt := time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	if r.ExpiresAt > 0 {
		expiresAt = time.Unix(r.ExpiresAt, 0)
	}
	return &Credentials{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		ExpiresAt:    expiresAt,
		RefreshToken: r.RefreshToken,
		User:         r.User,
	}
}

func (c *Credentials) session() *authctx.Session {
	return &authctx.Session{
		User: authctx.User{
			ID:       c.User.ID,
			Email:    c.User.Email,
			FullName: c.User.FullName(),
		},
		ExpiresAt: c.ExpiresAt,
	}
}
