package viewmodels

import (
	"time"

	"winsbygroup.com/keyverify/internal/logging"
	"winsbygroup.com/keyverify/internal/store"
)

// StoredLicense is a view model for a kept license response. The key is
// masked; the status page never shows a full key.
type StoredLicense struct {
	ProductID  int64
	MaskedKey  string
	SignMethod string
	ReceivedAt string
	ExpiresAt  string
}

// SignMethodText names the serialization a response was requested with
func SignMethodText(m int) string {
	switch m {
	case 0:
		return "fields"
	case 1:
		return "blob"
	default:
		return "unknown"
	}
}

// IsExpired checks if the stored license has expired at now
func (sl StoredLicense) IsExpired(now time.Time) bool {
	if sl.ExpiresAt == "" {
		return false
	}
	t, err := time.Parse(time.RFC3339, sl.ExpiresAt)
	if err != nil {
		return false
	}
	return t.Before(now)
}

// FromRecords converts store records to view models
func FromRecords(recs []store.Record) []StoredLicense {
	out := make([]StoredLicense, len(recs))
	for i, r := range recs {
		out[i] = StoredLicense{
			ProductID:  r.ProductID,
			MaskedKey:  logging.MaskKey(r.LicenseKey),
			SignMethod: SignMethodText(r.SignMethod),
			ReceivedAt: r.ReceivedAt,
			ExpiresAt:  r.ExpiresAt,
		}
	}
	return out
}

// Status is the view model of the status page
type Status struct {
	Version       string
	DefaultMethod string
	Licenses      []StoredLicense
	Now           time.Time
}
