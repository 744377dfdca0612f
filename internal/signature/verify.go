// Package signature verifies the service's RSA PKCS#1 v1.5 SHA-256 signatures.
//
// Verified is the only way signed bytes leave this package; the license
// builder accepts nothing else.
package signature

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"winsbygroup.com/keyverify/internal/licerr"
)

// Verify reports whether sig is a valid signature of message under key.
// Bad base64, a wrong length, a nil key and any internal failure all yield
// false.
func Verify(message []byte, sig string, key *PublicKey) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return verify(message, sig, key) == nil
}

func verify(message []byte, sig string, key *PublicKey) error {
	if key == nil || key.rsa == nil {
		return errors.New("no public key")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sig))
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if len(raw) != key.Size() {
		return fmt.Errorf("signature is %d bytes, want %d", len(raw), key.Size())
	}
	digest := sha256.Sum256(message)
	return rsa.VerifyPKCS1v15(key.rsa, crypto.SHA256, digest[:], raw)
}

// Verified carries bytes whose signature has been checked.
type Verified struct {
	message []byte
	payload []byte
	sealed  bool
}

// Seal verifies sig over message and, on success, returns the payload wrapped
// as Verified. Failure is always a licerr signature error.
func Seal(message, payload []byte, sig string, key *PublicKey) (v *Verified, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, licerr.NewSignature(fmt.Errorf("verify: %v", r))
		}
	}()
	if err := verify(message, sig, key); err != nil {
		return nil, licerr.NewSignature(err)
	}
	return &Verified{
		message: bytes.Clone(message),
		payload: bytes.Clone(payload),
		sealed:  true,
	}, nil
}

// Valid reports whether v came from Seal.
func (v *Verified) Valid() bool {
	return v != nil && v.sealed
}

// Payload returns a copy of the verified field set, or nil for an invalid v.
func (v *Verified) Payload() []byte {
	if !v.Valid() {
		return nil
	}
	return bytes.Clone(v.payload)
}

// Message returns a copy of the bytes the signature covered.
func (v *Verified) Message() []byte {
	if !v.Valid() {
		return nil
	}
	return bytes.Clone(v.message)
}
