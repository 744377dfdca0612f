// Package binding decides whether a license record admits a device.
package binding

import (
	"winsbygroup.com/keyverify/internal/license"
)

// Reason explains a Decision.
type Reason string

const (
	ReasonAuthorized        Reason = "authorized"
	ReasonUnsealed          Reason = "unverified license"
	ReasonNoDevice          Reason = "no device id"
	ReasonNoActivations     Reason = "no activations"
	ReasonNotActivated      Reason = "not activated on this device"
	ReasonFloatingOccupancy Reason = "floating activation count is not one"
	ReasonFloatingMismatch  Reason = "floating occupant does not match this device"
)

// Decision is the outcome of Evaluate.
type Decision struct {
	Authorized bool   `json:"authorized"`
	Reason     Reason `json:"reason"`
	// Overdraft is set when a floating match was made through the overdraft id.
	Overdraft bool `json:"overdraft,omitempty"`
}

// Mode selects the binding rules.
type Mode struct {
	Floating       bool
	AllowOverdraft bool
}

// IsAuthorized reports whether deviceID may use lic.
func IsAuthorized(lic *license.LicenseKey, deviceID string, floating, allowOverdraft bool) bool {
	return Evaluate(lic, deviceID, Mode{Floating: floating, AllowOverdraft: allowOverdraft}).Authorized
}

// Evaluate applies the binding rules to lic.
//
// Node-locked keys admit any device whose id equals a Mid in the activation
// list. Floating keys must carry exactly one activation, whose primary id, or
// overdraft id when allowed and present, equals deviceID.
func Evaluate(lic *license.LicenseKey, deviceID string, mode Mode) Decision {
	if !lic.Sealed() {
		return deny(ReasonUnsealed)
	}
	if deviceID == "" {
		return deny(ReasonNoDevice)
	}

	machines := lic.Machines()
	if mode.Floating {
		return evaluateFloating(machines, deviceID, mode.AllowOverdraft)
	}

	if len(machines) == 0 {
		return deny(ReasonNoActivations)
	}
	for _, m := range machines {
		if m.Mid == deviceID {
			return Decision{Authorized: true, Reason: ReasonAuthorized}
		}
	}
	return deny(ReasonNotActivated)
}

func evaluateFloating(machines []license.ActivatedMachine, deviceID string, allowOverdraft bool) Decision {
	if len(machines) != 1 {
		return deny(ReasonFloatingOccupancy)
	}

	f := machines[0].Floating
	if f.Primary != "" && f.Primary == deviceID {
		return Decision{Authorized: true, Reason: ReasonAuthorized}
	}
	if allowOverdraft && f.Overdraft != "" && f.Overdraft == deviceID {
		return Decision{Authorized: true, Reason: ReasonAuthorized, Overdraft: true}
	}
	return deny(ReasonFloatingMismatch)
}

func deny(r Reason) Decision {
	return Decision{Reason: r}
}
