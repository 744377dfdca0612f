package store

import "errors"

// ErrNotFound is returned when no response is stored for a product and key.
var ErrNotFound = errors.New("license response not found")

// ErrExists is returned by Repository.Create when a response is already
// stored for the product and key.
var ErrExists = errors.New("license response already stored")

// Record is a signed response body kept for offline verification. Body is
// stored exactly as received and is verified again on every read.
type Record struct {
	RecordID   string `db:"record_id" json:"record_id"`
	ProductID  int64  `db:"product_id" json:"product_id"`
	LicenseKey string `db:"license_key" json:"license_key"`
	SignMethod int    `db:"sign_method" json:"sign_method"`
	Body       []byte `db:"body" json:"-"`
	ReceivedAt string `db:"received_at" json:"received_at"`
	ExpiresAt  string `db:"expires_at" json:"expires_at"`
}

// Machine is one activation copied out of a stored response, kept for
// listing only.
type Machine struct {
	RecordID     string `db:"record_id" json:"-"`
	Position     int    `db:"position" json:"position"`
	Mid          string `db:"mid" json:"mid"`
	IP           string `db:"ip" json:"ip"`
	FriendlyName string `db:"friendly_name" json:"friendly_name"`
	ActivatedAt  string `db:"activated_at" json:"activated_at"`
}

var errUnsealed = errors.New("only verified licenses can be stored")
