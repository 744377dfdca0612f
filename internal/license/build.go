// Package license turns verified response bytes into a LicenseKey.
package license

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"winsbygroup.com/keyverify/internal/licerr"
	"winsbygroup.com/keyverify/internal/signature"
)

type buildConfig struct {
	metadata     json.RawMessage
	withMetadata bool
	layout       MidLayout
}

// Option adjusts Build.
type Option func(*buildConfig)

// WithMetadata attaches the response's metadata object to the key. Nothing is
// attached when raw is empty.
func WithMetadata(raw json.RawMessage) Option {
	return func(c *buildConfig) {
		c.withMetadata = true
		c.metadata = raw
	}
}

// WithMidLayout sets how floating Mids are split.
func WithMidLayout(l MidLayout) Option {
	return func(c *buildConfig) { c.layout = l }
}

// wire mirrors the signed JSON field set. Required fields are pointers so
// their absence is visible.
type wireKey struct {
	ProductID         *int64        `json:"ProductId"`
	ID                int64         `json:"ID"`
	Key               *string       `json:"Key"`
	Created           *int64        `json:"Created"`
	Expires           *int64        `json:"Expires"`
	Period            int64         `json:"Period"`
	F1                bool          `json:"F1"`
	F2                bool          `json:"F2"`
	F3                bool          `json:"F3"`
	F4                bool          `json:"F4"`
	F5                bool          `json:"F5"`
	F6                bool          `json:"F6"`
	F7                bool          `json:"F7"`
	F8                bool          `json:"F8"`
	Notes             string        `json:"Notes"`
	Block             bool          `json:"Block"`
	GlobalID          int64         `json:"GlobalId"`
	Customer          *wireCustomer `json:"Customer"`
	ActivatedMachines []wireMachine `json:"ActivatedMachines"`
	TrialActivation   bool          `json:"TrialActivation"`
	MaxNoOfMachines   int64         `json:"MaxNoOfMachines"`
	AllowedMachines   string        `json:"AllowedMachines"`
	DataObjects       []wireData    `json:"DataObjects"`
	SignDate          int64         `json:"SignDate"`
}

type wireCustomer struct {
	ID          int64  `json:"Id"`
	Name        string `json:"Name"`
	Email       string `json:"Email"`
	CompanyName string `json:"CompanyName"`
	Created     int64  `json:"Created"`
}

type wireMachine struct {
	Mid          string `json:"Mid"`
	IP           string `json:"IP"`
	Time         int64  `json:"Time"`
	FriendlyName string `json:"FriendlyName"`
}

type wireData struct {
	ID          int64  `json:"Id"`
	Name        string `json:"Name"`
	StringValue string `json:"StringValue"`
	IntValue    int64  `json:"IntValue"`
}

// Build decodes the verified field set. A payload that is not the expected
// shape is a ShapeMismatch; a v that did not come from signature.Seal is a
// signature failure.
func Build(v *signature.Verified, opts ...Option) (*LicenseKey, error) {
	if !v.Valid() {
		return nil, licerr.NewSignature(errors.New("payload was not verified"))
	}

	cfg := buildConfig{layout: DefaultMidLayout}
	for _, opt := range opts {
		opt(&cfg)
	}

	payload := bytes.TrimSpace(v.Payload())
	if len(payload) == 0 || payload[0] != '{' {
		return nil, licerr.NewShape(errors.New("license fields are not an object"))
	}

	var w wireKey
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, licerr.NewShape(fmt.Errorf("decode license fields: %w", err))
	}
	if err := w.checkRequired(); err != nil {
		return nil, licerr.NewShape(err)
	}

	k := &LicenseKey{
		ProductID:       *w.ProductID,
		ID:              w.ID,
		Key:             *w.Key,
		Created:         unix(*w.Created),
		Expires:         unix(*w.Expires),
		SignDate:        unix(w.SignDate),
		Period:          w.Period,
		F1:              w.F1,
		F2:              w.F2,
		F3:              w.F3,
		F4:              w.F4,
		F5:              w.F5,
		F6:              w.F6,
		F7:              w.F7,
		F8:              w.F8,
		Notes:           w.Notes,
		Block:           w.Block,
		GlobalID:        w.GlobalID,
		TrialActivation: w.TrialActivation,
		MaxNoOfMachines: w.MaxNoOfMachines,
		AllowedMachines: w.AllowedMachines,
		DataObjects:     make([]DataObject, 0, len(w.DataObjects)),
		machines:        make([]ActivatedMachine, 0, len(w.ActivatedMachines)),
		sealed:          true,
	}

	if c := w.Customer; c != nil {
		k.Customer = &Customer{
			ID:          c.ID,
			Name:        c.Name,
			Email:       c.Email,
			CompanyName: c.CompanyName,
			Created:     unix(c.Created),
		}
	}

	for _, m := range w.ActivatedMachines {
		k.machines = append(k.machines, ActivatedMachine{
			Mid:          m.Mid,
			IP:           m.IP,
			FriendlyName: m.FriendlyName,
			Time:         unix(m.Time),
			Floating:     cfg.layout.Parse(m.Mid),
		})
	}

	for _, d := range w.DataObjects {
		k.DataObjects = append(k.DataObjects, DataObject(d))
	}

	if cfg.withMetadata && len(cfg.metadata) > 0 {
		k.Metadata = append(json.RawMessage(nil), cfg.metadata...)
	}

	return k, nil
}

func (w *wireKey) checkRequired() error {
	var missing []string
	if w.ProductID == nil {
		missing = append(missing, "ProductId")
	}
	if w.Key == nil {
		missing = append(missing, "Key")
	}
	if w.Created == nil {
		missing = append(missing, "Created")
	}
	if w.Expires == nil {
		missing = append(missing, "Expires")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields %v", missing)
	}
	return nil
}

func unix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
