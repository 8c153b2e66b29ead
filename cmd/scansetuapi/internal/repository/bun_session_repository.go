package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/bunx"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/models"
)

// BunSessionRepository implements SessionRepository using Bun ORM
type BunSessionRepository struct {
	db bun.IDB
}

func NewBunSessionRepository(db bun.IDB) *BunSessionRepository {
	return &BunSessionRepository{db: db}
}

func (r *BunSessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = bunx.NewUUIDv7()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	if _, err := r.db.NewInsert().Model(session).Exec(ctx); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *BunSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	session := new(models.Session)
	if err := r.db.NewSelect().Model(session).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, "session")
	}
	return session, nil
}

// GetByRefreshTokenHash is the lookup used by the refresh grant.
func (r *BunSessionRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*models.Session, error) {
	session := new(models.Session)
	err := r.db.NewSelect().Model(session).Where("refresh_token_hash = ?", hash).Scan(ctx)
	if err != nil {
		return nil, notFound(err, "session")
	}
	return session, nil
}

// Rotate is a compare-and-swap on the refresh token hash so that two
// concurrent refreshes with the same token cannot both succeed.
func (r *BunSessionRepository) Rotate(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*models.Session)(nil)).
		Set("refresh_token_hash = ?", newHash).
		Set("expires_at = ?", expiresAt).
		Set("refreshed_at = ?", time.Now()).
		Where("id = ?", id).
		Where("refresh_token_hash = ?", oldHash).
		Where("revoked = ?", false).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	return requireRow(res, "session")
}

func (r *BunSessionRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.NewUpdate().
		Model((*models.Session)(nil)).
		Set("revoked = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeByUserID revokes every active session of a user and returns their
// ids.
func (r *BunSessionRepository) RevokeByUserID(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.NewSelect().
		Model((*models.Session)(nil)).
		Column("id").
		Where("user_id = ?", userID).
		Where("revoked = ?", false).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	_, err = r.db.NewUpdate().
		Model((*models.Session)(nil)).
		Set("revoked = ?", true).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("revoke user sessions: %w", err)
	}
	return ids, nil
}

// DeleteExpired removes sessions that expired before the cutoff.
func (r *BunSessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.Session)(nil)).
		Where("expires_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
