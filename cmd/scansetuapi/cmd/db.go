package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/bunx"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/migrations"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
	Long:  `Commands for managing the ScanSetu schema.`,
}

// withMigrator opens the database and hands fn a migrator for it.
func withMigrator(ctx context.Context, fn func(*migrate.Migrator) error) error {
	db, err := bunx.NewDB(ctx, cfg.DatabaseURL, bunx.Options{MaxOpenConns: 1})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer bunx.Close(db)
	return fn(migrate.NewMigrator(db, migrations.Migrations))
}

// locked runs fn while holding the migration lock.
func locked(ctx context.Context, m *migrate.Migrator, fn func() error) error {
	if err := m.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if err := m.Unlock(ctx); err != nil {
			log.Printf("Warning: failed to release migration lock: %v", err)
		}
	}()
	return fn()
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize migration tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withMigrator(ctx, func(m *migrate.Migrator) error {
			if err := m.Init(ctx); err != nil {
				return fmt.Errorf("failed to initialize migrator: %w", err)
			}
			log.Printf("Migration tables initialized")
			return nil
		})
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withMigrator(ctx, func(m *migrate.Migrator) error {
			if err := m.Init(ctx); err != nil {
				return fmt.Errorf("failed to initialize migrator: %w", err)
			}
			return locked(ctx, m, func() error {
				group, err := m.Migrate(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				if group.IsZero() {
					log.Printf("Schema is up to date")
					return nil
				}
				log.Printf("Applied migration group %d (%s)", group.ID, group.Migrations)
				return nil
			})
		})
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withMigrator(ctx, func(m *migrate.Migrator) error {
			ms, err := m.MigrationsWithStatus(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			for _, mg := range ms {
				status := "pending"
				if mg.GroupID > 0 {
					status = fmt.Sprintf("applied (group %d)", mg.GroupID)
				}
				log.Printf("  %s: %s", mg.Name, status)
			}
			return nil
		})
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back the last migration group",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withMigrator(ctx, func(m *migrate.Migrator) error {
			return locked(ctx, m, func() error {
				group, err := m.Rollback(ctx)
				if err != nil {
					return fmt.Errorf("rollback failed: %w", err)
				}
				if group.IsZero() {
					log.Printf("Nothing to roll back")
					return nil
				}
				log.Printf("Rolled back migration group %d", group.ID)
				return nil
			})
		})
	},
}

var dbUnlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Force release the migration lock",
	Long:  `Releases the migration lock left behind by a crashed migration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withMigrator(ctx, func(m *migrate.Migrator) error {
			if err := m.Unlock(ctx); err != nil {
				return fmt.Errorf("failed to release migration lock: %w", err)
			}
			log.Printf("Migration lock released")
			return nil
		})
	},
}

func init() {
	dbCmd.AddCommand(dbInitCmd, dbMigrateCmd, dbStatusCmd, dbRollbackCmd, dbUnlockCmd)
	rootCmd.AddCommand(dbCmd)
}
