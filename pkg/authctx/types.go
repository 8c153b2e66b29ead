package authctx

import (
	"context"
	"time"
)

// Role is the authorization tier assigned to a profile by the backend.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// User identifies the person behind a session.
type User struct {
	ID string
	// Email is empty when the identity provider did not supply one.
	Email string
	// FullName comes from sign-up or provider metadata and is used only to
	// seed the profile row.
	FullName string
}

// Session is proof of an identity recognized by the Session Store.
type Session struct {
	User      User
	ExpiresAt time.Time
}

// Profile extends a session with role and display metadata.
type Profile struct {
	ID       string
	Email    string
	FullName string
	Role     Role
}

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// State is the snapshot exposed to observers.
type State struct {
	Session *Session
	Profile *Profile
	Loading bool
}

// UserID returns the id of the signed-in user or "" when signed out.
func (s State) UserID() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.User.ID
}

// EventKind describes why the Session Store emitted a notification.
type EventKind string

const (
	EventInitialSession EventKind = "INITIAL_SESSION"
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
	EventUserUpdated    EventKind = "USER_UPDATED"
)

// Event is a session-change notification. Session is nil when the
// underlying session was cleared.
type Event struct {
	Kind    EventKind
	Session *Session
}

// SignUpResult reports what the provider did with a sign-up request.
type SignUpResult struct {
	// UserCreated is true when the provider returned a user record.
	UserCreated bool
	// EmailConfirmedAt is nil while the address is unverified.
	EmailConfirmedAt *time.Time
}

// ProfileInput carries the fields a client may write to its profile row.
type ProfileInput struct {
	ID       string
	Email    string
	FullName string
}

// SessionStore is the identity provider as seen by the Session Manager.
type SessionStore interface {
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*Session, error)
	SignInWithPassword(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password, fullName string) (*SignUpResult, error)
	SendMagicLink(ctx context.Context, email, returnPath string) error
	SignInWithOAuth(ctx context.Context, provider, returnPath string) error
	SignOut(ctx context.Context) error
	// OnSessionChange registers fn for notifications, delivered in the order
	// the provider emits them. The returned function unsubscribes.
	OnSessionChange(fn func(Event)) (unsubscribe func())
}

// ProfileStore is the tabular store holding one profile row per user.
type ProfileStore interface {
	// UpsertProfile inserts or merges the row keyed on in.ID.
	UpsertProfile(ctx context.Context, in ProfileInput) error
	// GetProfile returns nil, nil when no row exists.
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}
