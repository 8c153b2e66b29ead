package auth

import "context"

// Principal captures the authenticated caller propagated through the request context.
type Principal struct {
	// UserID references users.id.
	UserID string
	Email  string
	// SessionID references the active session row.
	SessionID string
	// Role is the caller's profile role ("student" when no profile exists yet).
	Role string
}

type principalContextKey struct{}

// SetPrincipal stores the authenticated principal on the context for downstream consumers.
func SetPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext retrieves the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	return principal, ok
}
