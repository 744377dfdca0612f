// Package response decodes the licensing service's JSON envelope.
//
// The service answers every call with the same envelope: a result code, a
// message, and, for signed calls, a base64 license blob plus its signature.
package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"winsbygroup.com/keyverify/internal/licerr"
)

// Result codes of the service envelope.
const (
	ResultSuccess = 0
	ResultError   = 1
)

// Protocol tags sent with signed requests.
const (
	ModelVersionFields = 1
	ModelVersionBlob   = 2
)

// RawResponse is a decoded success envelope. It is never built for
// result == 1; that case is reported as a ServerRejected error instead.
type RawResponse struct {
	Result    int
	Message   string
	Signature string
	// LicenseKey is the base64 text of the signed JSON field set, exactly as
	// received.
	LicenseKey string
	// Metadata is the optional metadata object, verbatim. Nil when absent.
	Metadata json.RawMessage
}

type envelope struct {
	Result     *int            `json:"result"`
	Message    string          `json:"message"`
	Signature  string          `json:"signature"`
	LicenseKey string          `json:"licenseKey"`
	Metadata   json.RawMessage `json:"metadata"`
}

// Decode parses body. It distinguishes a body that cannot be understood
// (KindMalformed) from an explicit server error (KindServerRejected), and
// rejects a success envelope that carries nothing to verify (KindSignature).
func Decode(body []byte) (*RawResponse, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, licerr.NewMalformed(errors.New("empty response body"))
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, licerr.NewMalformed(fmt.Errorf("decode envelope: %w", err))
	}
	if env.Result == nil {
		return nil, licerr.NewMalformed(errors.New("missing result"))
	}

	switch *env.Result {
	case ResultError:
		return nil, licerr.NewServerRejected(env.Message)
	case ResultSuccess:
	default:
		return nil, licerr.NewMalformed(fmt.Errorf("unknown result %d", *env.Result))
	}

	if env.LicenseKey == "" || env.Signature == "" {
		return nil, licerr.NewSignature(errors.New("unsigned success response"))
	}

	var meta json.RawMessage
	if len(env.Metadata) > 0 && !bytes.Equal(env.Metadata, []byte("null")) {
		meta = append(json.RawMessage(nil), env.Metadata...)
	}

	return &RawResponse{
		Result:     ResultSuccess,
		Message:    env.Message,
		Signature:  env.Signature,
		LicenseKey: env.LicenseKey,
		Metadata:   meta,
	}, nil
}

// Flat is the envelope of unsigned calls such as deactivation.
type Flat struct {
	Result  int    `json:"result"`
	Message string `json:"message"`
}

// DecodeFlat parses an unsigned envelope and reports result == 1 as a
// ServerRejected error.
func DecodeFlat(body []byte) (*Flat, error) {
	var env envelope
	if err := json.Unmarshal(bytes.TrimSpace(body), &env); err != nil {
		return nil, licerr.NewMalformed(fmt.Errorf("decode envelope: %w", err))
	}
	if env.Result == nil {
		return nil, licerr.NewMalformed(errors.New("missing result"))
	}
	if *env.Result == ResultError {
		return nil, licerr.NewServerRejected(env.Message)
	}
	if *env.Result != ResultSuccess {
		return nil, licerr.NewMalformed(fmt.Errorf("unknown result %d", *env.Result))
	}
	return &Flat{Result: *env.Result, Message: env.Message}, nil
}
