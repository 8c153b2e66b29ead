package migrations

import (
	"context"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20250901000002, down_20250901000002)
}

// up_20250901000002 creates profiles and the admin allow-list.
func up_20250901000002(ctx context.Context, db *bun.DB) error {
	if err := createTable(ctx, db, (*models.Profile)(nil), "profiles",
		`("id") REFERENCES "users" ("id") ON DELETE CASCADE`); err != nil {
		return err
	}
	return createTable(ctx, db, (*models.AdminEmail)(nil), "admin_emails")
}

func down_20250901000002(ctx context.Context, db *bun.DB) error {
	if err := dropTable(ctx, db, (*models.AdminEmail)(nil), "admin_emails"); err != nil {
		return err
	}
	return dropTable(ctx, db, (*models.Profile)(nil), "profiles")
}
