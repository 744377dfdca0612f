package sqlite_test

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"winsbygroup.com/keyverify/internal/sqlite"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_CreatesLicenseSchema(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "keyverify.db"), "WAL")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	for _, want := range []struct{ typ, name string }{
		{"table", "license_response"},
		{"table", "license_machine"},
		{"index", "idx_license_response_product_id"},
	} {
		var n int
		if err := db.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?`, want.typ, want.name); err != nil {
			t.Fatalf("lookup %s: %v", want.name, err)
		}
		if n != 1 {
			t.Errorf("expected %s %s to exist", want.typ, want.name)
		}
	}

	// machines hang off their response and go with it
	var fk struct {
		Table    string `db:"table"`
		From     string `db:"from"`
		OnDelete string `db:"on_delete"`
	}
	row := db.QueryRowx(`SELECT "table", "from", on_delete FROM pragma_foreign_key_list('license_machine')`)
	if err := row.StructScan(&fk); err != nil {
		t.Fatalf("read license_machine foreign key: %v", err)
	}
	if fk.Table != "license_response" || fk.From != "record_id" || fk.OnDelete != "CASCADE" {
		t.Errorf("unexpected license_machine foreign key %+v", fk)
	}

	var journal string
	if err := db.Get(&journal, `PRAGMA journal_mode;`); err != nil {
		t.Fatalf("journal mode: %v", err)
	}
	if !strings.EqualFold(journal, "wal") {
		t.Errorf("expected WAL journal, got %q", journal)
	}
}

func TestOpen_ReopenIsCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyverify.db")
	for i := 0; i < 2; i++ {
		db, err := sqlite.Open(path, "DELETE")
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		var steps int
		if err := db.Get(&steps, `SELECT COUNT(*) FROM darwin_migrations`); err != nil {
			t.Fatalf("count migrations: %v", err)
		}
		if steps != 4 {
			t.Errorf("open #%d: expected 4 applied migrations, got %d", i+1, steps)
		}
		db.Close()
	}
}

func TestOpen_RefusesForeignDatabase(t *testing.T) {
	t.Run("other application id", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "other.db")
		db, err := sqlite.Open(path, "DELETE")
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if _, err := db.Exec(`PRAGMA application_id = 305419896;`); err != nil { // 0x12345678
			t.Fatalf("set application_id: %v", err)
		}
		db.Close()

		if _, err := sqlite.Open(path, "DELETE"); !errors.Is(err, sqlite.ErrInvalidDatabase) {
			t.Errorf("expected ErrInvalidDatabase, got %v", err)
		}
	})

	t.Run("tables without application id are left alone", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.db")
		raw, err := sql.Open("sqlite3", path)
		if err != nil {
			t.Fatalf("open raw: %v", err)
		}
		if _, err := raw.Exec(`CREATE TABLE other_app (id INTEGER);`); err != nil {
			t.Fatalf("create table: %v", err)
		}
		raw.Close()

		if _, err := sqlite.Open(path, "DELETE"); !errors.Is(err, sqlite.ErrInvalidDatabase) {
			t.Fatalf("expected ErrInvalidDatabase, got %v", err)
		}

		raw, err = sql.Open("sqlite3", path)
		if err != nil {
			t.Fatalf("reopen raw: %v", err)
		}
		defer raw.Close()
		var n int
		if err := raw.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'license_response'`).Scan(&n); err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if n != 0 {
			t.Error("expected no keyverify tables in a foreign database")
		}
	})
}

func TestRunMigrations_SetsApplicationID(t *testing.T) {
	db := openMemory(t)
	if err := sqlite.RunMigrations(db); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}

	var appID int
	if err := db.QueryRow("PRAGMA application_id;").Scan(&appID); err != nil {
		t.Fatalf("read application_id: %v", err)
	}
	if appID != sqlite.ApplicationID {
		t.Errorf("expected application_id 0x%X, got 0x%X", sqlite.ApplicationID, appID)
	}
	if err := sqlite.VerifyApplicationID(db); err != nil {
		t.Errorf("expected migrated database to pass the guard, got %v", err)
	}
}

func TestVerifyApplicationID_EmptyDatabase(t *testing.T) {
	if err := sqlite.VerifyApplicationID(openMemory(t)); err != nil {
		t.Errorf("expected no error for a new database, got %v", err)
	}
}

func TestDSN(t *testing.T) {
	dsn := sqlite.DSN("/data/keyverify.db", "WAL")
	if !strings.HasPrefix(dsn, "/data/keyverify.db?") {
		t.Errorf("expected path first, got %q", dsn)
	}
	for _, want := range []string{"_foreign_keys=on", "_journal_mode=WAL"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("expected %q in %q", want, dsn)
		}
	}
	if strings.Contains(sqlite.DSN("x.db", ""), "_journal_mode") {
		t.Error("expected no journal mode when none is given")
	}
}
