// Package machine derives the device identifier a license is activated with.
package machine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnavailable is returned when the platform id cannot be read.
var ErrUnavailable = errors.New("machine id unavailable")

// Version selects the hashing scheme.
type Version int

const (
	// V1 hashes the UTF-8 platform id.
	V1 Version = 1
	// V2 hashes the UTF-16LE platform id, matching .NET clients on Windows.
	V2 Version = 2
)

// Code returns the machine code of this device: the SHA-256 hex digest of the
// platform hardware id.
func Code(ctx context.Context, v Version) (string, error) {
	id, err := platformID(ctx)
	if err != nil {
		return "", err
	}
	return Hash(id, v)
}

// Hash computes the machine code for a platform id.
func Hash(id string, v Version) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty platform id", ErrUnavailable)
	}

	var data []byte
	switch v {
	case V1:
		data = []byte(id)
	case V2:
		enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
		utf16Str, _, err := transform.String(enc, id)
		if err != nil {
			return "", fmt.Errorf("encode UTF-16LE: %w", err)
		}
		data = []byte(utf16Str)
	default:
		return "", fmt.Errorf("unsupported machine code version %d", v)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
