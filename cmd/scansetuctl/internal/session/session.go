// Package session hosts the Session Manager for a single CLI invocation.
package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scansetu/scansetu/cmd/scansetuctl/internal/config"
	"github.com/scansetu/scansetu/cmd/scansetuctl/internal/credentials"
	"github.com/scansetu/scansetu/pkg/authctx"
	"github.com/scansetu/scansetu/pkg/sdk"
)

// Options overrides the collaborators Open would build itself.
type Options struct {
	Store         sdk.CredentialStore
	Logger        *zap.Logger
	BrowserOpener func(string)
}

// Session ties the SDK adapters to a running authctx.Manager.
type Session struct {
	Client    *sdk.Client
	Auth      *sdk.Auth
	Profiles  *sdk.Profiles
	Inventory *sdk.Inventory
	Manager   *authctx.Manager

	redirects chan string
}

// NewLogger writes warnings to stderr, or everything when debug is set.
func NewLogger(debug bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// New wires the SDK and a Manager without starting them.
func New(cfg *config.GlobalConfig, opts Options) (*Session, error) {
	if opts.Store == nil {
		store, err := credentials.NewFileStore()
		if err != nil {
			return nil, fmt.Errorf("failed to create credential store: %w", err)
		}
		opts.Store = store
	}
	if opts.Logger == nil {
		opts.Logger = NewLogger(cfg.Debug)
	}

	s := &Session{redirects: make(chan string, 1)}
	s.Client = sdk.NewClient(cfg.ServerURL,
		sdk.WithCredentialStore(opts.Store),
		sdk.WithLogger(opts.Logger),
	)

	authOpts := []sdk.AuthOption{
		sdk.WithRedirectHandler(func(path string) {
			select {
			case s.redirects <- path:
			default:
			}
		}),
	}
	if opts.BrowserOpener != nil {
		authOpts = append(authOpts, sdk.WithBrowserOpener(opts.BrowserOpener))
	}
	s.Auth = sdk.NewAuth(s.Client, authOpts...)
	s.Profiles = sdk.NewProfiles(s.Client)
	s.Inventory = sdk.NewInventory(s.Client)
	s.Manager = authctx.New(s.Auth, s.Profiles, authctx.WithLogger(opts.Logger.Named("authctx")))
	return s, nil
}

// Open builds a Session and starts the Session Store and the Manager.
func Open(ctx context.Context, cfg *config.GlobalConfig, opts Options) (*Session, error) {
	s, err := New(cfg, opts)
	if err != nil {
		return nil, err
	}
	s.Auth.Start(ctx)
	s.Manager.Start(ctx)
	return s, nil
}

// Close stops the Manager before the Session Store it listens to.
func (s *Session) Close() {
	s.Manager.Close()
	s.Auth.Close()
}

// WaitFor blocks until the Manager commits a state satisfying ok, or ctx
// ends.
func (s *Session) WaitFor(ctx context.Context, ok func(authctx.State) bool) (authctx.State, error) {
	matched := make(chan authctx.State, 1)
	unsubscribe := s.Manager.Subscribe(func(st authctx.State) {
		if !ok(st) {
			return
		}
		select {
		case matched <- st:
		default:
		}
	})
	defer unsubscribe()

	if st := s.Manager.State(); ok(st) {
		return st, nil
	}
	select {
	case st := <-matched:
		return st, nil
	case <-ctx.Done():
		return s.Manager.State(), ctx.Err()
	}
}

// SignedIn matches a settled state for userID, or any signed-in user when
// userID is empty.
func SignedIn(userID string) func(authctx.State) bool {
	return func(st authctx.State) bool {
		if st.Loading || st.Session == nil {
			return false
		}
		return userID == "" || st.UserID() == userID
	}
}

// ReturnPath reports where the last redirect-based sign-in asked to land.
func (s *Session) ReturnPath() (string, bool) {
	select {
	case p := <-s.redirects:
		return p, true
	default:
		return "", false
	}
}
