// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/bunx"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/migrations"
)

// Open returns a fresh SQLite database with every migration applied. It is
// closed when the test ends.
func Open(t testing.TB) *bun.DB {
	t.Helper()
	ctx := context.Background()

	db, err := bunx.NewDB(ctx, ":memory:", bunx.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = migrations.Up(ctx, db)
	require.NoError(t, err)
	return db
}
