package migrations

import (
	"context"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20250901000001, down_20250901000001)
}

// up_20250901000001 creates the identity tables: users, sessions and
// one-time tokens.
func up_20250901000001(ctx context.Context, db *bun.DB) error {
	if err := createTable(ctx, db, (*models.User)(nil), "users"); err != nil {
		return err
	}

	if err := createTable(ctx, db, (*models.Session)(nil), "sessions",
		`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`); err != nil {
		return err
	}
	if err := createIndex(ctx, db, (*models.Session)(nil), "idx_sessions_user_id", "user_id"); err != nil {
		return err
	}

	if err := createTable(ctx, db, (*models.OneTimeToken)(nil), "one_time_tokens",
		`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`); err != nil {
		return err
	}
	return createIndex(ctx, db, (*models.OneTimeToken)(nil), "idx_one_time_tokens_user_id", "user_id", "kind")
}

func down_20250901000001(ctx context.Context, db *bun.DB) error {
	if err := dropTable(ctx, db, (*models.OneTimeToken)(nil), "one_time_tokens"); err != nil {
		return err
	}
	if err := dropTable(ctx, db, (*models.Session)(nil), "sessions"); err != nil {
		return err
	}
	return dropTable(ctx, db, (*models.User)(nil), "users")
}
