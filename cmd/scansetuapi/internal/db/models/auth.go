package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Sign-in providers recorded on users.
const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
)

// User is an identity known to the Session Store.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID               string     `bun:"id,pk,type:uuid"`
	Email            string     `bun:"email,notnull,unique"`
	PasswordHash     *string    `bun:"password_hash"`
	FullName         string     `bun:"full_name,nullzero"`
	Provider         string     `bun:"provider,notnull,default:'email'"`
	Subject          *string    `bun:"subject,unique"`
	EmailConfirmedAt *time.Time `bun:"email_confirmed_at"`
	CreatedAt        time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	LastSignInAt     *time.Time `bun:"last_sign_in_at"`
	DisabledAt       *time.Time `bun:"disabled_at"`
}

// Confirmed reports whether the user has verified their email address.
func (u *User) Confirmed() bool {
	return u.EmailConfirmedAt != nil
}

// Disabled reports whether an operator has disabled the account.
func (u *User) Disabled() bool {
	return u.DisabledAt != nil
}

// Session is a refresh-token family for one signed-in client. Access tokens
// carry the session id so revoking the row ends them too.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:sess"`

	ID               string     `bun:"id,pk,type:uuid"`
	UserID           string     `bun:"user_id,notnull,type:uuid"`
	RefreshTokenHash string     `bun:"refresh_token_hash,notnull,unique"`
	ExpiresAt        time.Time  `bun:"expires_at,notnull"`
	CreatedAt        time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	RefreshedAt      *time.Time `bun:"refreshed_at"`
	UserAgent        string     `bun:"user_agent,nullzero"`
	IPAddress        string     `bun:"ip_address,nullzero"`
	Revoked          bool       `bun:"revoked,notnull,default:false"`
}

// Active reports whether the session can still authenticate requests.
func (s *Session) Active(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}

// One-time token kinds.
const (
	TokenKindSignup    = "signup"
	TokenKindMagicLink = "magiclink"
	// TokenKindFlow is the short-lived code handed back on a redirect and
	// exchanged for a session.
	TokenKindFlow = "flow"
)

// OneTimeToken is an emailed confirmation/magic link or a redirect flow code.
type OneTimeToken struct {
	bun.BaseModel `bun:"table:one_time_tokens,alias:ott"`

	ID            string     `bun:"id,pk,type:uuid"`
	UserID        string     `bun:"user_id,notnull,type:uuid"`
	Kind          string     `bun:"kind,notnull"`
	TokenHash     string     `bun:"token_hash,notnull,unique"`
	RedirectTo    string     `bun:"redirect_to,nullzero"`
	CodeChallenge string     `bun:"code_challenge,nullzero"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull"`
	ConsumedAt    *time.Time `bun:"consumed_at"`
	CreatedAt     time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

// Usable reports whether the token can still be redeemed.
func (t *OneTimeToken) Usable(now time.Time) bool {
	return t.ConsumedAt == nil && now.Before(t.ExpiresAt)
}
