package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/models"
)

// BunInventoryRepository implements InventoryRepository using Bun ORM
type BunInventoryRepository struct {
	db bun.IDB
}

func NewBunInventoryRepository(db bun.IDB) *BunInventoryRepository {
	return &BunInventoryRepository{db: db}
}

func (r *BunInventoryRepository) CountProducts(ctx context.Context) (int64, error) {
	n, err := r.db.NewSelect().Model((*models.Product)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return int64(n), nil
}

func (r *BunInventoryRepository) CountItemsByStatus(ctx context.Context, status string) (int64, error) {
	n, err := r.db.NewSelect().Model((*models.Item)(nil)).Where("status = ?", status).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %s items: %w", status, err)
	}
	return int64(n), nil
}

// CountOverdue counts issued assignments whose due date has passed.
func (r *BunInventoryRepository) CountOverdue(ctx context.Context, now time.Time) (int64, error) {
	n, err := r.db.NewSelect().
		Model((*models.Assignment)(nil)).
		Where("status = ?", models.AssignmentIssued).
		Where("due_at IS NOT NULL").
		Where("due_at < ?", now).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count overdue assignments: %w", err)
	}
	return int64(n), nil
}

func (r *BunInventoryRepository) RecentActivity(ctx context.Context, limit int) ([]models.RecentActivity, error) {
	var rows []models.RecentActivity
	q := r.db.NewSelect().Model(&rows).Order("updated DESC", "code ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("read recent activity: %w", err)
	}
	return rows, nil
}

func (r *BunInventoryRepository) AssignmentsForUser(ctx context.Context, userID string) ([]models.MyAssignment, error) {
	var rows []models.MyAssignment
	err := r.db.NewSelect().
		TableExpr("assignments AS asg").
		ColumnExpr("asg.id AS id").
		ColumnExpr("it.code AS code").
		ColumnExpr("prod.name AS product").
		ColumnExpr("asg.status AS status").
		ColumnExpr("asg.issued_at AS issued_at").
		ColumnExpr("asg.due_at AS due_at").
		Join("JOIN items AS it ON it.id = asg.item_id").
		Join("JOIN products AS prod ON prod.id = it.product_id").
		Where("asg.user_id = ?", userID).
		OrderExpr("asg.issued_at DESC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("read assignments: %w", err)
	}
	return rows, nil
}
