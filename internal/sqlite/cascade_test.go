package sqlite_test

import (
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"winsbygroup.com/keyverify/internal/sqlite"
	"winsbygroup.com/keyverify/internal/testutil"
)

// countRows returns the number of rows in a table
func countRows(t *testing.T, db *sqlx.DB, table string) int {
	t.Helper()
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM "+table); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}

// insertTestData executes SQL statements to set up test data
func insertTestData(t *testing.T, db *sqlx.DB, sql string) {
	t.Helper()
	if _, err := db.Exec(sql); err != nil {
		t.Fatalf("insert test data: %v", err)
	}
}

const testResponses = `
	INSERT INTO license_response (record_id, product_id, license_key, sign_method, body, received_at, expires_at) VALUES
		('r-1', 3349, 'AAAAA-BBBBB', 1, '{}', '2026-01-01T00:00:00Z', '2027-01-01T00:00:00Z'),
		('r-2', 3349, 'CCCCC-DDDDD', 1, '{}', '2026-01-01T00:00:00Z', '2027-01-01T00:00:00Z');

	INSERT INTO license_machine (record_id, position, mid, ip, friendly_name, activated_at) VALUES
		('r-1', 0, 'MID-1A', '10.0.0.1', 'one', '2026-01-01T00:00:00Z'),
		('r-1', 1, 'MID-1B', '10.0.0.2', 'two', '2026-01-01T00:00:00Z'),
		('r-2', 0, 'MID-2A', '10.0.0.3', 'three', '2026-01-01T00:00:00Z');
`

// TestCascadeDeleteResponse verifies that deleting a stored response removes
// its machines and leaves other responses untouched.
func TestCascadeDeleteResponse(t *testing.T) {
	db := testutil.NewTestDB(t)
	insertTestData(t, db, testResponses)

	if got := countRows(t, db, "license_machine"); got != 3 {
		t.Fatalf("expected 3 machines before delete, got %d", got)
	}

	if _, err := db.Exec(`DELETE FROM license_response WHERE record_id = 'r-1'`); err != nil {
		t.Fatalf("delete response: %v", err)
	}

	if got := countRows(t, db, "license_response"); got != 1 {
		t.Errorf("expected 1 response after delete, got %d", got)
	}
	if got := countRows(t, db, "license_machine"); got != 1 {
		t.Errorf("expected 1 machine after cascade, got %d", got)
	}
}

func TestUniqueProductKey(t *testing.T) {
	db := testutil.NewTestDB(t)
	insertTestData(t, db, testResponses)

	// license keys compare case-insensitively
	_, err := db.Exec(`INSERT INTO license_response (record_id, product_id, license_key, sign_method, body, received_at, expires_at)
		VALUES ('r-3', 3349, 'aaaaa-bbbbb', 1, '{}', '', '')`)
	if err == nil {
		t.Fatal("expected unique constraint error, got nil")
	}
	if !sqlite.IsUniqueConstraintError(err) {
		t.Errorf("expected unique constraint error, got %v", err)
	}

	// same key under another product is a different license
	if _, err := db.Exec(`INSERT INTO license_response (record_id, product_id, license_key, sign_method, body, received_at, expires_at)
		VALUES ('r-4', 1, 'AAAAA-BBBBB', 0, '{}', '', '')`); err != nil {
		t.Errorf("expected insert under another product to succeed, got %v", err)
	}
}

func TestMachineRequiresResponse(t *testing.T) {
	db := testutil.NewTestDB(t)

	_, err := db.Exec(`INSERT INTO license_machine (record_id, position, mid) VALUES ('missing', 0, 'MID')`)
	if !sqlite.IsForeignKeyError(err) {
		t.Errorf("expected foreign key error for orphan machine, got %v", err)
	}
	if sqlite.IsUniqueConstraintError(err) {
		t.Error("foreign key error reported as unique violation")
	}
}
