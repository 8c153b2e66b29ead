package sdk

import (
	"errors"
	"sync"
	"time"
)

// ErrNoCredentials is returned by a CredentialStore holding nothing.
var ErrNoCredentials = errors.New("not logged in")

// User is the identity attached to a session.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	LastSignInAt     *time.Time     `json:"last_sign_in_at,omitempty"`
}

// FullName returns the display name carried in user metadata, if any.
func (u User) FullName() string {
	if u.UserMetadata == nil {
		return ""
	}
	name, _ := u.UserMetadata["full_name"].(string)
	return name
}

// Credentials represents a signed-in session as persisted on the client.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	User         User      `json:"user"`
}

func (c *Credentials) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// expiresWithin reports whether the access token expires inside d.
func (c *Credentials) expiresWithin(d time.Duration) bool {
	return time.Now().Add(d).After(c.ExpiresAt)
}

// CredentialStore persists Credentials between runs. LoadCredentials returns
// ErrNoCredentials (possibly wrapped) when nothing is stored.
type CredentialStore interface {
	SaveCredentials(*Credentials) error
	LoadCredentials() (*Credentials, error)
	DeleteCredentials() error
}

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	creds *Credentials
}

var _ CredentialStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SaveCredentials(c *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.creds = &cp
	return nil
}

func (s *MemoryStore) LoadCredentials() (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds == nil {
		return nil, ErrNoCredentials
	}
	cp := *s.creds
	return &cp, nil
}

func (s *MemoryStore) DeleteCredentials() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = nil
	return nil
}
