package store_test

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"winsbygroup.com/keyverify/internal/canonical"
	"winsbygroup.com/keyverify/internal/keycheck"
	"winsbygroup.com/keyverify/internal/license"
	"winsbygroup.com/keyverify/internal/store"
	"winsbygroup.com/keyverify/internal/testutil"
)

// checked returns a signed body and the key built from it.
func checked(t *testing.T, s *testutil.Signer, fields testutil.Fields) ([]byte, *license.LicenseKey) {
	t.Helper()
	c, err := keycheck.NewChecker(keycheck.VerificationContext{PublicKey: s.Public, SignMethod: canonical.SignMethodBlob})
	if err != nil {
		t.Fatalf("new checker: %v", err)
	}
	body := s.SignedBody(t, fields)
	key, err := c.Check(body)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	return body, key
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	svc := store.NewService(db, "")
	s := testutil.NewSigner(t)

	body, key := checked(t, s, testutil.LicenseFields().WithMachines("dev-1", "dev-2"))

	// Save
	rec, err := svc.Save(ctx, 1, body, key)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.RecordID == "" {
		t.Error("expected record id")
	}

	// Get
	got, err := svc.Get(ctx, 3349, "ICVLD-VVSZR-ZTICT-YKGXL")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Body) != string(body) {
		t.Error("expected stored body to match byte for byte")
	}
	if got.ExpiresAt != "2100-01-01T00:00:00Z" {
		t.Errorf("expected expires_at 2100-01-01T00:00:00Z, got %q", got.ExpiresAt)
	}

	// keys compare case-insensitively
	if _, err := svc.Get(ctx, 3349, "icvld-vvszr-ztict-ykgxl"); err != nil {
		t.Errorf("expected case-insensitive get, got %v", err)
	}

	// Machines
	machines, err := svc.Machines(ctx, got.RecordID)
	if err != nil {
		t.Fatalf("machines: %v", err)
	}
	if len(machines) != 2 || machines[0].Mid != "dev-1" || machines[1].Mid != "dev-2" {
		t.Errorf("unexpected machines %+v", machines)
	}

	// Save again replaces body and machines, keeps id
	body2, key2 := checked(t, s, testutil.LicenseFields().WithMachines("dev-3"))
	rec2, err := svc.Save(ctx, 1, body2, key2)
	if err != nil {
		t.Fatalf("save again: %v", err)
	}
	if rec2.RecordID != rec.RecordID {
		t.Errorf("expected id %q to be kept, got %q", rec.RecordID, rec2.RecordID)
	}
	machines, _ = svc.Machines(ctx, rec.RecordID)
	if len(machines) != 1 || machines[0].Mid != "dev-3" {
		t.Errorf("expected machines replaced, got %+v", machines)
	}

	// List
	all, err := svc.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 record, got %d", len(all))
	}
	other, err := svc.List(ctx, 1)
	if err != nil {
		t.Fatalf("list product: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no records for product 1, got %d", len(other))
	}

	// Delete
	if err := svc.Delete(ctx, 3349, "ICVLD-VVSZR-ZTICT-YKGXL"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, 3349, "ICVLD-VVSZR-ZTICT-YKGXL"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := svc.Delete(ctx, 3349, "ICVLD-VVSZR-ZTICT-YKGXL"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestRepositoryConstraints(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := store.New(db)

	rec := &store.Record{RecordID: "r-1", ProductID: 3349, LicenseKey: "KEY-1", SignMethod: 1, Body: []byte("{}")}
	dup := &store.Record{RecordID: "r-2", ProductID: 3349, LicenseKey: "key-1", SignMethod: 1, Body: []byte("{}")}

	tx := db.MustBeginTx(ctx, nil)
	defer tx.Rollback()

	if err := repo.Create(ctx, tx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, tx, dup); !errors.Is(err, store.ErrExists) {
		t.Errorf("expected ErrExists for the same product and key, got %v", err)
	}
	id, err := repo.Replace(ctx, tx, dup)
	if err != nil || id != "r-1" {
		t.Errorf("expected replace to keep id r-1, got %q (%v)", id, err)
	}

	missing := &store.Record{ProductID: 1, LicenseKey: "NOPE"}
	if _, err := repo.Replace(ctx, tx, missing); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound replacing a missing response, got %v", err)
	}
	if err := repo.ReplaceMachines(ctx, tx, "gone", []store.Machine{{Mid: "m"}}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for machines without a response, got %v", err)
	}
}

func TestSaveRejectsUnverifiedKey(t *testing.T) {
	ctx := context.Background()
	svc := store.NewService(testutil.NewTestDB(t), "")

	if _, err := svc.Save(ctx, 1, []byte(`{}`), &license.LicenseKey{ProductID: 1, Key: "K"}); err == nil {
		t.Error("expected error saving an unverified key")
	}
	if _, err := svc.Save(ctx, 1, []byte(`{}`), nil); err == nil {
		t.Error("expected error saving a nil key")
	}
}

func TestBackup(t *testing.T) {
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db := testutil.NewTestDBAt(t, dbPath)
	svc := store.NewService(db, dbPath)

	body, key := checked(t, testutil.NewSigner(t), testutil.LicenseFields().WithMachines("dev-1"))
	if _, err := svc.Save(ctx, 1, body, key); err != nil {
		t.Fatalf("save: %v", err)
	}

	result, err := svc.Backup(ctx)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}

	if result.Size == 0 {
		t.Error("expected size > 0")
	}
	if !strings.HasSuffix(result.Filename, "_keyverify.sql.gz") {
		t.Errorf("expected filename to end with _keyverify.sql.gz, got %s", result.Filename)
	}
	if filepath.Dir(result.Path) != filepath.Join(filepath.Dir(dbPath), "backups") {
		t.Errorf("expected backup next to the database, got %s", result.Path)
	}

	file, err := os.Open(result.Path)
	if err != nil {
		t.Fatalf("open backup file: %v", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		t.Fatalf("create gzip reader: %v", err)
	}
	defer gzReader.Close()

	content, err := io.ReadAll(gzReader)
	if err != nil {
		t.Fatalf("read gzip content: %v", err)
	}
	dump := string(content)

	for _, want := range []string{
		"CREATE TABLE",
		`INSERT INTO "license_response"`,
		`INSERT INTO "license_machine"`,
		"ICVLD-VVSZR-ZTICT-YKGXL",
		"X'",
		"BEGIN TRANSACTION",
		"COMMIT",
		"PRAGMA journal_mode=WAL",
	} {
		if !strings.Contains(dump, want) {
			t.Errorf("expected dump to contain %q", want)
		}
	}

	if strings.Index(dump, `INSERT INTO "license_response"`) > strings.Index(dump, `INSERT INTO "license_machine"`) {
		t.Error("expected responses to be dumped before machines")
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(result.Path), "snapshot.db")); !os.IsNotExist(err) {
		t.Error("expected snapshot to be removed")
	}
}
