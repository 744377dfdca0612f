package api

import (
	"encoding/json"

	"winsbygroup.com/keyverify/internal/binding"
	"winsbygroup.com/keyverify/internal/license"
	"winsbygroup.com/keyverify/internal/store"
)

// VerifyRequest is the body of POST /verify. Response is the licensing
// service's answer, either as a JSON object or as a JSON string holding it.
type VerifyRequest struct {
	Response       json.RawMessage `json:"response" validate:"required"`
	DeviceID       string          `json:"device_id" validate:"omitempty,max=512"`
	Floating       bool            `json:"floating"`
	AllowOverdraft bool            `json:"allow_overdraft"`
	SignMethod     *int            `json:"sign_method" validate:"omitempty,oneof=0 1"`
	Metadata       bool            `json:"metadata"`
}

// VerifyResponse reports a check. Valid is set exactly when License is.
// Decision is present only when a device id was given.
type VerifyResponse struct {
	Valid    bool                `json:"valid"`
	Kind     string              `json:"kind,omitempty"`
	Message  string              `json:"message,omitempty"`
	License  *license.LicenseKey `json:"license,omitempty"`
	Decision *binding.Decision   `json:"decision,omitempty"`
}

// StoredLicenseResponse is the body of GET /license/:product_id/:key.
type StoredLicenseResponse struct {
	Record   store.Record        `json:"record"`
	Machines []store.Machine     `json:"machines"`
	License  *license.LicenseKey `json:"license"`
}
