// Package databasetest opens migrated throwaway SQLite databases for tests.
package databasetest

import (
	"context"
	"path/filepath"
	"testing"

	"beershop/internal/config"
	"beershop/internal/storage/database"

	"github.com/stretchr/testify/require"
)

// New returns a file-backed SQLite database with all migrations applied.
// A file is used instead of :memory: so every pooled connection sees the
// same schema.
func New(t *testing.T) *database.DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:     database.DialectSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "test.sqlite"),
	}
	db, err := database.Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(context.Background()))

	t.Cleanup(func() { _ = db.Close() })
	return db
}
