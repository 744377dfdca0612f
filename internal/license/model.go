package license

import (
	"encoding/json"
	"time"
)

// LicenseKey is a license record built from a verified response.
//
// Only Build produces a sealed key. A zero or hand-assembled LicenseKey is
// never authorized for any device.
type LicenseKey struct {
	ProductID       int64     `json:"productId"`
	ID              int64     `json:"id"`
	Key             string    `json:"key"`
	Created         time.Time `json:"created"`
	Expires         time.Time `json:"expires"`
	SignDate        time.Time `json:"signDate"`
	Period          int64     `json:"period"`
	F1              bool      `json:"f1"`
	F2              bool      `json:"f2"`
	F3              bool      `json:"f3"`
	F4              bool      `json:"f4"`
	F5              bool      `json:"f5"`
	F6              bool      `json:"f6"`
	F7              bool      `json:"f7"`
	F8              bool      `json:"f8"`
	Notes           string    `json:"notes"`
	Block           bool      `json:"block"`
	GlobalID        int64     `json:"globalId"`
	TrialActivation bool      `json:"trialActivation"`
	MaxNoOfMachines int64     `json:"maxNoOfMachines"`
	AllowedMachines string    `json:"allowedMachines"`

	Customer    *Customer    `json:"customer,omitempty"`
	DataObjects []DataObject `json:"dataObjects"`

	// Metadata is the unsigned metadata object of the response, verbatim, and
	// only when requested.
	Metadata json.RawMessage `json:"metadata,omitempty"`

	machines []ActivatedMachine
	sealed   bool
}

type Customer struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	CompanyName string    `json:"companyName"`
	Created     time.Time `json:"created"`
}

type DataObject struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	StringValue string `json:"stringValue"`
	IntValue    int64  `json:"intValue"`
}

// ActivatedMachine is one entry of the activation list.
type ActivatedMachine struct {
	Mid          string    `json:"mid"`
	IP           string    `json:"ip"`
	FriendlyName string    `json:"friendlyName"`
	Time         time.Time `json:"time"`

	// Floating is Mid split with the layout the key was built with.
	Floating FloatingMid `json:"floating"`
}

// FloatingMid holds the occupant ids of a floating activation.
type FloatingMid struct {
	Primary   string `json:"primary"`
	Overdraft string `json:"overdraft,omitempty"`
}

// MidLayout gives the byte offsets of the occupant ids in a floating Mid.
//
// In split form the primary id runs from PrimaryOffset to OverdraftOffset and
// the overdraft id is the remainder; an OverdraftOffset not past
// PrimaryOffset disables the overdraft segment. With Suffix set both ids are
// suffixes: the primary id is Mid[PrimaryOffset:] and the overdraft id is
// Mid[OverdraftOffset:], as in "floating:<code>" and
// "floating:overdraft:<code>" entries.
type MidLayout struct {
	PrimaryOffset   int  `json:"primaryOffset"`
	OverdraftOffset int  `json:"overdraftOffset"`
	Suffix          bool `json:"suffix"`
}

// DefaultMidLayout is a 9-byte header followed by two 6-byte ids.
var DefaultMidLayout = MidLayout{PrimaryOffset: 9, OverdraftOffset: 15}

// SuffixMidLayout matches "floating:" and "floating:overdraft:" prefixed Mids.
var SuffixMidLayout = MidLayout{PrimaryOffset: 9, OverdraftOffset: 19, Suffix: true}

// Parse splits mid. Out-of-range offsets yield empty ids, which never match.
func (l MidLayout) Parse(mid string) FloatingMid {
	if l.Suffix {
		var f FloatingMid
		if l.PrimaryOffset >= 0 && l.PrimaryOffset < len(mid) {
			f.Primary = mid[l.PrimaryOffset:]
		}
		if l.OverdraftOffset > l.PrimaryOffset && l.OverdraftOffset < len(mid) {
			f.Overdraft = mid[l.OverdraftOffset:]
		}
		return f
	}

	if l.PrimaryOffset < 0 || l.PrimaryOffset >= len(mid) {
		return FloatingMid{}
	}
	if l.OverdraftOffset > l.PrimaryOffset && len(mid) > l.OverdraftOffset {
		return FloatingMid{
			Primary:   mid[l.PrimaryOffset:l.OverdraftOffset],
			Overdraft: mid[l.OverdraftOffset:],
		}
	}
	return FloatingMid{Primary: mid[l.PrimaryOffset:]}
}

// Sealed reports whether k came out of Build.
func (k *LicenseKey) Sealed() bool {
	return k != nil && k.sealed
}

// Machines returns a copy of the activation list in response order.
func (k *LicenseKey) Machines() []ActivatedMachine {
	if k == nil {
		return nil
	}
	out := make([]ActivatedMachine, len(k.machines))
	copy(out, k.machines)
	return out
}

// Feature reports flag Fn for n in 1..8.
func (k *LicenseKey) Feature(n int) bool {
	if k == nil {
		return false
	}
	switch n {
	case 1:
		return k.F1
	case 2:
		return k.F2
	case 3:
		return k.F3
	case 4:
		return k.F4
	case 5:
		return k.F5
	case 6:
		return k.F6
	case 7:
		return k.F7
	case 8:
		return k.F8
	default:
		return false
	}
}

// HasExpired reports whether now is past Expires.
func (k *LicenseKey) HasExpired(now time.Time) bool {
	return k == nil || now.After(k.Expires)
}

// MarshalJSON includes the activation list.
func (k *LicenseKey) MarshalJSON() ([]byte, error) {
	type alias LicenseKey
	return json.Marshal(struct {
		*alias
		ActivatedMachines []ActivatedMachine `json:"activatedMachines"`
	}{
		alias:             (*alias)(k),
		ActivatedMachines: k.Machines(),
	})
}
