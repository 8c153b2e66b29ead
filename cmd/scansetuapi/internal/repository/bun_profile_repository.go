package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/models"
)

// BunProfileRepository implements ProfileRepository using Bun ORM
type BunProfileRepository struct {
	db bun.IDB
}

func NewBunProfileRepository(db bun.IDB) *BunProfileRepository {
	return &BunProfileRepository{db: db}
}

// Upsert keys on id. An empty email or full name in the input keeps the
// stored value.
func (r *BunProfileRepository) Upsert(ctx context.Context, profile *models.Profile) error {
	now := time.Now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	profile.Email = NormalizeEmail(profile.Email)

	_, err := r.db.NewInsert().
		Model(profile).
		On("CONFLICT (id) DO UPDATE").
		Set("email = COALESCE(EXCLUDED.email, ?TableAlias.email)").
		Set("full_name = COALESCE(EXCLUDED.full_name, ?TableAlias.full_name)").
		Set("role = EXCLUDED.role").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (r *BunProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	profile := new(models.Profile)
	if err := r.db.NewSelect().Model(profile).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, "profile")
	}
	return profile, nil
}

func (r *BunProfileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	profile := new(models.Profile)
	err := r.db.NewSelect().Model(profile).Where("email = ?", NormalizeEmail(email)).Scan(ctx)
	if err != nil {
		return nil, notFound(err, "profile")
	}
	return profile, nil
}

func (r *BunProfileRepository) SetRole(ctx context.Context, id, role string) error {
	res, err := r.db.NewUpdate().
		Model((*models.Profile)(nil)).
		Set("role = ?", role).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set profile role: %w", err)
	}
	return requireRow(res, "profile")
}

// BunAdminEmailRepository implements AdminEmailRepository using Bun ORM
type BunAdminEmailRepository struct {
	db bun.IDB
}

func NewBunAdminEmailRepository(db bun.IDB) *BunAdminEmailRepository {
	return &BunAdminEmailRepository{db: db}
}

func (r *BunAdminEmailRepository) Add(ctx context.Context, email string) error {
	entry := &models.AdminEmail{Email: NormalizeEmail(email), CreatedAt: time.Now()}
	_, err := r.db.NewInsert().Model(entry).On("CONFLICT (email) DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("add admin email: %w", err)
	}
	return nil
}

func (r *BunAdminEmailRepository) Remove(ctx context.Context, email string) error {
	res, err := r.db.NewDelete().
		Model((*models.AdminEmail)(nil)).
		Where("email = ?", NormalizeEmail(email)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("remove admin email: %w", err)
	}
	return requireRow(res, "admin email")
}

func (r *BunAdminEmailRepository) Contains(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, nil
	}
	exists, err := r.db.NewSelect().
		Model((*models.AdminEmail)(nil)).
		Where("email = ?", NormalizeEmail(email)).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check admin email: %w", err)
	}
	return exists, nil
}

func (r *BunAdminEmailRepository) List(ctx context.Context) ([]models.AdminEmail, error) {
	var out []models.AdminEmail
	if err := r.db.NewSelect().Model(&out).Order("email ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list admin emails: %w", err)
	}
	return out, nil
}
