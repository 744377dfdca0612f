package sqlite

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/jmoiron/sqlx"
)

// DSN returns the go-sqlite3 data source for path. Connection parameters
// apply to every pooled connection, so foreign keys are always enforced.
func DSN(path, journalMode string) string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", "5000")
	if journalMode != "" {
		q.Set("_journal_mode", journalMode)
	}
	return path + "?" + q.Encode()
}

// Open connects to the database at path, checks that foreign keys are
// enforced and applies the migrations.
func Open(path, journalMode string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", DSN(path, journalMode))
	if err != nil {
		return nil, err
	}

	var fkEnabled int
	if err := db.QueryRow(`PRAGMA foreign_keys;`).Scan(&fkEnabled); err != nil {
		db.Close()
		return nil, fmt.Errorf("foreign key support check failed: %w", err)
	}
	if fkEnabled != 1 {
		db.Close()
		return nil, errors.New("SQLite foreign keys not supported (requires SQLite 3.6.19+ compiled without SQLITE_OMIT_FOREIGN_KEY)")
	}

	if err := RunMigrations(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return db, nil
}
