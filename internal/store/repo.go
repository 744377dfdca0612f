package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"winsbygroup.com/keyverify/internal/sqlite"
)

type Repository interface {
	List(ctx context.Context) ([]Record, error)
	ListForProduct(ctx context.Context, productID int64) ([]Record, error)
	Get(ctx context.Context, productID int64, key string) (*Record, error)
	Create(ctx context.Context, tx *sqlx.Tx, r *Record) error
	Replace(ctx context.Context, tx *sqlx.Tx, r *Record) (string, error)
	Delete(ctx context.Context, tx *sqlx.Tx, productID int64, key string) (bool, error)
	Machines(ctx context.Context, recordID string) ([]Machine, error)
	ReplaceMachines(ctx context.Context, tx *sqlx.Tx, recordID string, machines []Machine) error
}

type repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) Repository {
	return &repo{db: db}
}

func (r *repo) List(ctx context.Context) ([]Record, error) {
	var out []Record
	err := r.db.SelectContext(ctx, &out, listResponsesSQL)
	if err != nil {
		return nil, fmt.Errorf("list license responses: %w", err)
	}
	return out, nil
}

func (r *repo) ListForProduct(ctx context.Context, productID int64) ([]Record, error) {
	var out []Record
	err := r.db.SelectContext(ctx, &out, listResponsesForProductSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("list license responses for product %d: %w", productID, err)
	}
	return out, nil
}

func (r *repo) Get(ctx context.Context, productID int64, key string) (*Record, error) {
	var rec Record
	err := r.db.GetContext(ctx, &rec, getResponseSQL, productID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get license response: %w", err)
	}
	return &rec, nil
}

// Create inserts rec. It returns ErrExists when a response is already stored
// for (ProductID, LicenseKey).
func (r *repo) Create(ctx context.Context, tx *sqlx.Tx, rec *Record) error {
	_, err := tx.ExecContext(ctx, createResponseSQL,
		rec.RecordID,
		rec.ProductID,
		rec.LicenseKey,
		rec.SignMethod,
		rec.Body,
		rec.ReceivedAt,
		rec.ExpiresAt,
	)
	if sqlite.IsUniqueConstraintError(err) {
		return ErrExists
	}
	if err != nil {
		return fmt.Errorf("create license response: %w", err)
	}
	return nil
}

// Replace overwrites the stored response for (ProductID, LicenseKey) and
// returns the id of the row, which keeps its original value.
func (r *repo) Replace(ctx context.Context, tx *sqlx.Tx, rec *Record) (string, error) {
	res, err := tx.ExecContext(ctx, replaceResponseSQL,
		rec.SignMethod,
		rec.Body,
		rec.ReceivedAt,
		rec.ExpiresAt,
		rec.ProductID,
		rec.LicenseKey,
	)
	if err != nil {
		return "", fmt.Errorf("replace license response: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return "", ErrNotFound
	}

	var id string
	if err := tx.GetContext(ctx, &id, getRecordIDSQL, rec.ProductID, rec.LicenseKey); err != nil {
		return "", fmt.Errorf("read license response id: %w", err)
	}
	return id, nil
}

func (r *repo) Delete(ctx context.Context, tx *sqlx.Tx, productID int64, key string) (bool, error) {
	res, err := tx.ExecContext(ctx, deleteResponseSQL, productID, key)
	if err != nil {
		return false, fmt.Errorf("delete license response: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete license response: %w", err)
	}
	return n > 0, nil
}

func (r *repo) Machines(ctx context.Context, recordID string) ([]Machine, error) {
	var out []Machine
	err := r.db.SelectContext(ctx, &out, getMachinesSQL, recordID)
	if err != nil {
		return nil, fmt.Errorf("get license machines: %w", err)
	}
	return out, nil
}

func (r *repo) ReplaceMachines(ctx context.Context, tx *sqlx.Tx, recordID string, machines []Machine) error {
	if _, err := tx.ExecContext(ctx, deleteMachinesSQL, recordID); err != nil {
		return fmt.Errorf("clear license machines: %w", err)
	}
	for _, m := range machines {
		_, err := tx.ExecContext(ctx, createMachineSQL,
			recordID,
			m.Position,
			m.Mid,
			m.IP,
			m.FriendlyName,
			m.ActivatedAt,
		)
		if sqlite.IsForeignKeyError(err) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("create license machine: %w", err)
		}
	}
	return nil
}
