// Package databasetest opens migrated throwaway databases for tests.
package databasetest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkrupp/filevault/internal/infra/database"
)

// SQLiteConfig returns a config for a SQLite database file inside dir.
func SQLiteConfig(dir string) database.Config {
	return database.Config{
		Driver:         "sqlite",
		DSN:            fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", filepath.Join(dir, "test.db")),
		QueryTimeout:   5 * time.Second,
		ConnectTimeout: 5 * time.Second,
	}
}

// OpenSQLite opens a fresh, migrated SQLite database that is closed when the test ends.
func OpenSQLite(t *testing.T) *database.DB {
	t.Helper()

	ctx := context.Background()

	db, err := database.Open(ctx, SQLiteConfig(t.TempDir()))
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(ctx, db))

	return db
}
