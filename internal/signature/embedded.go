package signature

import (
	"errors"
	"strings"
)

// PublicKeyB64 can be set at build time:
// -X 'winsbygroup.com/keyverify/internal/signature.PublicKeyB64=<base64 of XML or PEM key>'
var PublicKeyB64 string

// ErrNoEmbeddedKey is returned by Embedded when no key was linked in.
var ErrNoEmbeddedKey = errors.New("no public key embedded at build time")

// Embedded parses the key linked in through PublicKeyB64.
func Embedded() (*PublicKey, error) {
	raw := strings.TrimSpace(PublicKeyB64)
	if raw == "" {
		return nil, ErrNoEmbeddedKey
	}
	return Parse(raw)
}
