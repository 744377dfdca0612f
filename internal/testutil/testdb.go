package testutil

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"winsbygroup.com/keyverify/internal/sqlite"
)

// NewTestDB returns a migrated license store in a temp dir, closed when t ends.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	return NewTestDBAt(t, filepath.Join(t.TempDir(), "test.db"))
}

// NewTestDBAt is NewTestDB at a caller-chosen path, for tests that reopen or
// inspect the file.
func NewTestDBAt(t *testing.T, dbPath string) *sqlx.DB {
	t.Helper()

	db, err := sqlite.Open(dbPath, "DELETE")
	if err != nil {
		t.Fatalf("open license store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
