package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/auth"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/services/identity"
)

const (
	defaultRoleCacheSize = 1024
	defaultRoleCacheTTL  = 30 * time.Second
)

// Authenticator validates bearer access tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (auth.Principal, error)
}

// RoleResolver looks up a user's profile role.
type RoleResolver interface {
	Role(ctx context.Context, userID string) (string, error)
}

// AuthnDependencies bundles collaborators required by the authentication middleware.
type AuthnDependencies struct {
	Authenticator Authenticator
	Roles         RoleResolver
	// RoleCacheTTL bounds how long a role change can take to reach
	// authorization decisions. Zero uses the default.
	RoleCacheTTL time.Duration
	Logger       *zap.Logger
}

// Authn resolves the bearer token on each request into an auth.Principal.
type Authn struct {
	authenticator Authenticator
	roles         RoleResolver
	cache         *expirable.LRU[string, string]
	logger        *zap.Logger
}

// NewAuthn creates the authentication middleware.
func NewAuthn(deps AuthnDependencies) (*Authn, error) {
	if deps.Authenticator == nil {
		return nil, errors.New("authn middleware requires an authenticator")
	}
	if deps.Roles == nil {
		return nil, errors.New("authn middleware requires a role resolver")
	}
	ttl := deps.RoleCacheTTL
	if ttl <= 0 {
		ttl = defaultRoleCacheTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authn{
		authenticator: deps.Authenticator,
		roles:         deps.Roles,
		cache:         expirable.NewLRU[string, string](defaultRoleCacheSize, nil, ttl),
		logger:        logger,
	}, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// principal on the request context.
func (a *Authn) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			unauthenticated(w, "This endpoint requires a Bearer token")
			return
		}

		principal, err := a.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			if authErr, ok := identity.AsAuthError(err); ok {
				WriteError(w, authErr.Status, authErr.Code, authErr.Message)
				return
			}
			a.logger.Error("authenticate request", zap.String("path", r.URL.Path), zap.Error(err))
			WriteError(w, http.StatusInternalServerError, "unexpected_failure", "authentication error")
			return
		}

		role, err := a.role(r.Context(), principal.UserID)
		if err != nil {
			a.logger.Error("resolve role", zap.String("user_id", principal.UserID), zap.Error(err))
			WriteError(w, http.StatusInternalServerError, "unexpected_failure", "authentication error")
			return
		}
		principal.Role = role

		next.ServeHTTP(w, r.WithContext(auth.SetPrincipal(r.Context(), principal)))
	})
}

func (a *Authn) role(ctx context.Context, userID string) (string, error) {
	if role, ok := a.cache.Get(userID); ok {
		return role, nil
	}
	role, err := a.roles.Role(ctx, userID)
	if err != nil {
		return "", err
	}
	a.cache.Add(userID, role)
	return role, nil
}

// InvalidateRole drops the cached role for userID.
func (a *Authn) InvalidateRole(userID string) {
	a.cache.Remove(userID)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
