package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/bunx"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/models"
)

// BunOneTimeTokenRepository implements OneTimeTokenRepository using Bun ORM
type BunOneTimeTokenRepository struct {
	db bun.IDB
}

func NewBunOneTimeTokenRepository(db bun.IDB) *BunOneTimeTokenRepository {
	return &BunOneTimeTokenRepository{db: db}
}

func (r *BunOneTimeTokenRepository) Create(ctx context.Context, token *models.OneTimeToken) error {
	if token.ID == "" {
		token.ID = bunx.NewUUIDv7()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	if _, err := r.db.NewInsert().Model(token).Exec(ctx); err != nil {
		return fmt.Errorf("create one-time token: %w", err)
	}
	return nil
}

// Consume flips consumed_at in a single conditional update so a token can be
// redeemed at most once.
func (r *BunOneTimeTokenRepository) Consume(ctx context.Context, kind, hash string, now time.Time) (*models.OneTimeToken, error) {
	res, err := r.db.NewUpdate().
		Model((*models.OneTimeToken)(nil)).
		Set("consumed_at = ?", now).
		Where("token_hash = ?", hash).
		Where("kind = ?", kind).
		Where("consumed_at IS NULL").
		Where("expires_at > ?", now).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("consume one-time token: %w", err)
	}
	if err := requireRow(res, "one-time token"); err != nil {
		return nil, err
	}

	token := new(models.OneTimeToken)
	if err := r.db.NewSelect().Model(token).Where("token_hash = ?", hash).Scan(ctx); err != nil {
		return nil, notFound(err, "one-time token")
	}
	return token, nil
}

func (r *BunOneTimeTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.OneTimeToken)(nil)).
		Where("expires_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired one-time tokens: %w", err)
	}
	return res.RowsAffected()
}
