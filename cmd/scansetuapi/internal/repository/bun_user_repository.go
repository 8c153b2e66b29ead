package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/bunx"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/models"
)

// BunUserRepository implements UserRepository using Bun ORM
type BunUserRepository struct {
	db bun.IDB
}

func NewBunUserRepository(db bun.IDB) *BunUserRepository {
	return &BunUserRepository{db: db}
}

// NormalizeEmail lower-cases and trims an address before it is stored or
// compared.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *BunUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = bunx.NewUUIDv7()
	}
	user.Email = NormalizeEmail(user.Email)
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now

	if _, err := r.db.NewInsert().Model(user).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Email, ErrDuplicate)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *BunUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user := new(models.User)
	if err := r.db.NewSelect().Model(user).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, "user")
	}
	return user, nil
}

func (r *BunUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().Model(user).Where("email = ?", NormalizeEmail(email)).Scan(ctx)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return user, nil
}

func (r *BunUserRepository) GetBySubject(ctx context.Context, subject string) (*models.User, error) {
	user := new(models.User)
	if err := r.db.NewSelect().Model(user).Where("subject = ?", subject).Scan(ctx); err != nil {
		return nil, notFound(err, "user")
	}
	return user, nil
}

func (r *BunUserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	res, err := r.db.NewUpdate().Model(user).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRow(res, "user")
}

func (r *BunUserRepository) MarkConfirmed(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("email_confirmed_at = COALESCE(email_confirmed_at, ?)", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("confirm user: %w", err)
	}
	return requireRow(res, "user")
}

func (r *BunUserRepository) SetDisabled(ctx context.Context, id string, at *time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("disabled_at = ?", at).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("disable user: %w", err)
	}
	return requireRow(res, "user")
}

func (r *BunUserRepository) TouchSignIn(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("last_sign_in_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("touch sign-in: %w", err)
	}
	return nil
}
