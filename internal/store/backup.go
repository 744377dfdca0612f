package store

import (
	"compress/gzip"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// BackupResult describes a written backup file.
type BackupResult struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
}

// Backup writes a gzip-compressed SQL dump of the store to a "backups"
// directory next to the database file.
func (s *Service) Backup(ctx context.Context) (*BackupResult, error) {
	backupDir := filepath.Join(filepath.Dir(s.dbPath), "backups")
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	now := s.now()
	filename := now.Format("2006-01-02_15.04.05") + "_keyverify.sql.gz"
	backupPath := filepath.Join(backupDir, filename)

	// VACUUM INTO gives a consistent snapshot while the store stays writable
	snapshot := filepath.Join(backupDir, "snapshot.db")
	_ = os.Remove(snapshot)
	defer os.Remove(snapshot)

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return nil, fmt.Errorf("vacuum into snapshot: %w", err)
	}

	snapDB, err := sqlx.Open("sqlite3", snapshot+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer snapDB.Close()

	file, err := os.Create(backupPath)
	if err != nil {
		return nil, fmt.Errorf("create backup file: %w", err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	if err := writeDump(ctx, snapDB, gz, now); err != nil {
		return nil, fmt.Errorf("write dump: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("close gzip writer: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat backup file: %w", err)
	}

	return &BackupResult{
		Filename: filename,
		Path:     backupPath,
		Size:     info.Size(),
	}, nil
}

func writeDump(ctx context.Context, db *sqlx.DB, w io.Writer, now time.Time) error {
	var sb strings.Builder

	sb.WriteString("-- keyverify license store backup\n")
	fmt.Fprintf(&sb, "-- Generated: %s\n", now.UTC().Format(time.RFC3339))
	sb.WriteString("PRAGMA foreign_keys=OFF;\n")
	sb.WriteString("BEGIN TRANSACTION;\n\n")

	var schemas []schemaObject
	if err := db.SelectContext(ctx, &schemas, schemaObjectsSQL); err != nil {
		return fmt.Errorf("query schemas: %w", err)
	}
	for _, obj := range schemas {
		sb.WriteString(obj.SQL)
		sb.WriteString(";\n")
	}
	sb.WriteString("\n")

	// parents before children so the dump replays with foreign keys on
	var tables []string
	if err := db.SelectContext(ctx, &tables, userTablesSQL); err != nil {
		return fmt.Errorf("query tables: %w", err)
	}
	for _, table := range tables {
		if err := writeInserts(ctx, db, &sb, table); err != nil {
			return fmt.Errorf("dump %s: %w", table, err)
		}
	}

	sb.WriteString("COMMIT;\n")
	sb.WriteString("PRAGMA journal_mode=WAL;\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

type schemaObject struct {
	Type string `db:"type"`
	Name string `db:"name"`
	SQL  string `db:"sql"`
}

const schemaObjectsSQL = `
SELECT type, name, sql
FROM sqlite_master
WHERE sql IS NOT NULL
  AND name NOT LIKE 'sqlite_%'
ORDER BY
    CASE type
        WHEN 'table' THEN 1
        WHEN 'index' THEN 2
        WHEN 'trigger' THEN 3
        WHEN 'view' THEN 4
    END,
    name
`

const userTablesSQL = `
SELECT name
FROM sqlite_master
WHERE type = 'table'
  AND name NOT LIKE 'sqlite_%'
ORDER BY
    CASE name
        WHEN 'license_response' THEN 0
        WHEN 'license_machine' THEN 1
        ELSE 2
    END,
    name
`

func writeInserts(ctx context.Context, db *sqlx.DB, sb *strings.Builder, table string) error {
	rows, err := db.QueryxContext(ctx, fmt.Sprintf("SELECT * FROM %q", table))
	if err != nil {
		return fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = fmt.Sprintf("%q", col)
	}
	colList := strings.Join(quoted, ", ")

	for rows.Next() {
		row, err := rows.SliceScan()
		if err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		values := make([]string, len(row))
		for i, v := range row {
			values[i] = sqlLiteral(v)
		}
		fmt.Fprintf(sb, "INSERT INTO %q (%s) VALUES (%s);\n", table, colList, strings.Join(values, ", "))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}
	sb.WriteString("\n")
	return nil
}

// sqlLiteral renders v as a SQLite literal. Byte slices become blob
// literals so signed bodies replay byte for byte.
func sqlLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return "X'" + strings.ToUpper(hex.EncodeToString(val)) + "'"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case int64, float64:
		return fmt.Sprintf("%v", val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case time.Time:
		return "'" + val.UTC().Format(time.RFC3339) + "'"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", val), "'", "''") + "'"
	}
}
