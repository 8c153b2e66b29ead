// Package migrations holds the schema history applied by `scansetuapi db`.
package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migrations is the registry every migration file adds itself to.
var Migrations = migrate.NewMigrations()

func createTable(ctx context.Context, db *bun.DB, model any, name string, foreignKeys ...string) error {
	fmt.Printf(" [up] creating %s table...", name)
	q := db.NewCreateTable().Model(model).IfNotExists()
	for _, fk := range foreignKeys {
		q = q.ForeignKey(fk)
	}
	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create %s table: %w", name, err)
	}
	fmt.Println(" OK")
	return nil
}

func dropTable(ctx context.Context, db *bun.DB, model any, name string) error {
	fmt.Printf(" [down] dropping %s table...", name)
	if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop %s table: %w", name, err)
	}
	fmt.Println(" OK")
	return nil
}

func createIndex(ctx context.Context, db *bun.DB, model any, index string, columns ...string) error {
	_, err := db.NewCreateIndex().
		Model(model).
		Index(index).
		Column(columns...).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", index, err)
	}
	return nil
}

// Up creates the bookkeeping tables if needed and applies every pending
// migration.
func Up(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	if err := migrator.Lock(ctx); err != nil {
		return nil, fmt.Errorf("lock migrations: %w", err)
	}
	defer migrator.Unlock(ctx) //nolint:errcheck

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return group, fmt.Errorf("migrate: %w", err)
	}
	return group, nil
}
