package repository

import (
	"context"
	"time"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/models"
)

// UserRepository persists identities.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetBySubject(ctx context.Context, subject string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	MarkConfirmed(ctx context.Context, id string, at time.Time) error
	SetDisabled(ctx context.Context, id string, at *time.Time) error
	TouchSignIn(ctx context.Context, id string, at time.Time) error
}

// SessionRepository persists refresh-token sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	GetByRefreshTokenHash(ctx context.Context, hash string) (*models.Session, error)
	// Rotate swaps the refresh token hash, failing with ErrNotFound when
	// oldHash no longer matches an active session.
	Rotate(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) error
	Revoke(ctx context.Context, id string) error
	RevokeByUserID(ctx context.Context, userID string) ([]string, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// OneTimeTokenRepository persists emailed links and flow codes.
type OneTimeTokenRepository interface {
	Create(ctx context.Context, token *models.OneTimeToken) error
	// Consume marks the token used and returns it. Tokens already consumed,
	// expired or of another kind yield ErrNotFound.
	Consume(ctx context.Context, kind, hash string, now time.Time) (*models.OneTimeToken, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ProfileRepository persists profiles and the admin allow-list.
type ProfileRepository interface {
	// Upsert inserts the row or merges email and full name into it. The role
	// is always written.
	Upsert(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	SetRole(ctx context.Context, id, role string) error
}

// AdminEmailRepository persists the admin allow-list.
type AdminEmailRepository interface {
	Add(ctx context.Context, email string) error
	Remove(ctx context.Context, email string) error
	Contains(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]models.AdminEmail, error)
}

// InventoryRepository reads the dashboard shapes.
type InventoryRepository interface {
	CountProducts(ctx context.Context) (int64, error)
	CountItemsByStatus(ctx context.Context, status string) (int64, error)
	CountOverdue(ctx context.Context, now time.Time) (int64, error)
	RecentActivity(ctx context.Context, limit int) ([]models.RecentActivity, error)
	AssignmentsForUser(ctx context.Context, userID string) ([]models.MyAssignment, error)
}
