// Package testutil provides shared helpers for integration tests.
// SQLite is embedded, so unlike a server database there is nothing to skip:
// every test gets its own throwaway database file under t.TempDir().
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/pressly/goose/v3"

	"github.com/pkordes/promptgenie/internal/repo"
	"github.com/pkordes/promptgenie/migrations"
)

// NewDB opens a fresh SQLite database in a per-test temp directory and
// applies all migrations. The file (and the whole directory) is removed by
// the testing framework when the test finishes; the handle is closed via
// t.Cleanup.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "promptgenie_test.db")

	db, err := repo.Open(path)
	if err != nil {
		t.Fatalf("testutil.NewDB: open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.FS)
	if err != nil {
		t.Fatalf("testutil.NewDB: create goose provider: %v", err)
	}
	if _, err := provider.Up(context.Background()); err != nil {
		t.Fatalf("testutil.NewDB: apply migrations: %v", err)
	}

	return db
}
