package middleware

import (
	"errors"
	"net/http"

	"github.com/casbin/casbin/v2"
	"go.uber.org/zap"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/auth"
)

// NewAuthz constructs a chi middleware that enforces the Casbin route policy
// against the caller's role. It must run after Authn.
func NewAuthz(enforcer casbin.IEnforcer, logger *zap.Logger) (func(http.Handler) http.Handler, error) {
	if enforcer == nil {
		return nil, errors.New("authz middleware requires casbin enforcer")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok || principal.UserID == "" {
				unauthenticated(w, "This endpoint requires a Bearer token")
				return
			}

			allowed, err := enforcer.Enforce(auth.RoleSubject(principal.Role), r.URL.Path, r.Method)
			if err != nil {
				logger.Error("enforce policy", zap.String("path", r.URL.Path), zap.Error(err))
				WriteError(w, http.StatusInternalServerError, "unexpected_failure", "authorization error")
				return
			}
			if !allowed {
				logger.Debug("request denied",
					zap.String("user_id", principal.UserID),
					zap.String("role", principal.Role),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				WriteError(w, http.StatusForbidden, "insufficient_role", "You do not have access to this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}
