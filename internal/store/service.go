package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"winsbygroup.com/keyverify/internal/license"
)

// timeFormat is used for every time column.
const timeFormat = time.RFC3339

type Service struct {
	repo   Repository
	db     *sqlx.DB
	dbPath string
	now    func() time.Time
}

func NewService(db *sqlx.DB, dbPath string) *Service {
	return &Service{
		db:     db,
		dbPath: dbPath,
		repo:   New(db),
		now:    time.Now,
	}
}

func (s *Service) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Save stores body, the response lic was checked from. Only sealed keys
// are accepted, so a stored body has passed verification at least once.
func (s *Service) Save(ctx context.Context, signMethod int, body []byte, lic *license.LicenseKey) (*Record, error) {
	if !lic.Sealed() {
		return nil, errUnsealed
	}

	rec := &Record{
		RecordID:   uuid.NewString(),
		ProductID:  lic.ProductID,
		LicenseKey: lic.Key,
		SignMethod: signMethod,
		Body:       append([]byte(nil), body...),
		ReceivedAt: s.now().UTC().Format(timeFormat),
		ExpiresAt:  lic.Expires.UTC().Format(timeFormat),
	}

	machines := make([]Machine, 0, len(lic.Machines()))
	for i, m := range lic.Machines() {
		machines = append(machines, Machine{
			Position:     i,
			Mid:          m.Mid,
			IP:           m.IP,
			FriendlyName: m.FriendlyName,
			ActivatedAt:  m.Time.UTC().Format(timeFormat),
		})
	}

	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := s.repo.Create(ctx, tx, rec)
		if errors.Is(err, ErrExists) {
			rec.RecordID, err = s.repo.Replace(ctx, tx, rec)
		}
		if err != nil {
			return err
		}
		return s.repo.ReplaceMachines(ctx, tx, rec.RecordID, machines)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) Get(ctx context.Context, productID int64, key string) (*Record, error) {
	return s.repo.Get(ctx, productID, key)
}

// List returns every stored response, or those of one product when
// productID is non-zero.
func (s *Service) List(ctx context.Context, productID int64) ([]Record, error) {
	if productID != 0 {
		return s.repo.ListForProduct(ctx, productID)
	}
	return s.repo.List(ctx)
}

func (s *Service) Machines(ctx context.Context, recordID string) ([]Machine, error) {
	return s.repo.Machines(ctx, recordID)
}

// Delete removes the stored response and its machines. It returns
// ErrNotFound when nothing was stored.
func (s *Service) Delete(ctx context.Context, productID int64, key string) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		found, err := s.repo.Delete(ctx, tx, productID, key)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		return nil
	})
}
