package migrations

import (
	"context"
	"fmt"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20250901000003, down_20250901000003)
}

// recentActivityView lists every item with its current holder. It sticks to
// SQL both PostgreSQL and SQLite accept.
const recentActivityView = `
CREATE VIEW recent_activity AS
SELECT
	it.code AS code,
	prod.name AS product,
	CASE WHEN it.status = 'issued' THEN COALESCE((
		SELECT COALESCE(p.full_name, p.email, u.email)
		FROM assignments a
		JOIN users u ON u.id = a.user_id
		LEFT JOIN profiles p ON p.id = a.user_id
		WHERE a.item_id = it.id AND a.status = 'issued'
		ORDER BY a.issued_at DESC
		LIMIT 1
	), '') ELSE '' END AS holder,
	CASE WHEN it.status = 'issued' THEN 'Issued' ELSE 'In Stock' END AS status,
	it.updated_at AS updated
FROM items it
JOIN products prod ON prod.id = it.product_id`

// up_20250901000003 creates the read shape the dashboards query.
func up_20250901000003(ctx context.Context, db *bun.DB) error {
	if err := createTable(ctx, db, (*models.Product)(nil), "products"); err != nil {
		return err
	}

	if err := createTable(ctx, db, (*models.Item)(nil), "items",
		`("product_id") REFERENCES "products" ("id") ON DELETE CASCADE`); err != nil {
		return err
	}
	if err := createIndex(ctx, db, (*models.Item)(nil), "idx_items_product_id", "product_id"); err != nil {
		return err
	}

	if err := createTable(ctx, db, (*models.Assignment)(nil), "assignments",
		`("item_id") REFERENCES "items" ("id") ON DELETE CASCADE`,
		`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`); err != nil {
		return err
	}
	if err := createIndex(ctx, db, (*models.Assignment)(nil), "idx_assignments_user_id", "user_id", "status"); err != nil {
		return err
	}

	fmt.Print(" [up] creating recent_activity view...")
	if _, err := db.ExecContext(ctx, `DROP VIEW IF EXISTS recent_activity`); err != nil {
		return fmt.Errorf("failed to drop stale recent_activity view: %w", err)
	}
	if _, err := db.ExecContext(ctx, recentActivityView); err != nil {
		return fmt.Errorf("failed to create recent_activity view: %w", err)
	}
	fmt.Println(" OK")
	return nil
}

func down_20250901000003(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping recent_activity view...")
	if _, err := db.ExecContext(ctx, `DROP VIEW IF EXISTS recent_activity`); err != nil {
		return fmt.Errorf("failed to drop recent_activity view: %w", err)
	}
	fmt.Println(" OK")

	for _, m := range []struct {
		model any
		name  string
	}{
		{(*models.Assignment)(nil), "assignments"},
		{(*models.Item)(nil), "items"},
		{(*models.Product)(nil), "products"},
	} {
		if err := dropTable(ctx, db, m.model, m.name); err != nil {
			return err
		}
	}
	return nil
}
