package licerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"transport", NewTransport("", errors.New("dial tcp: refused")), KindTransport},
		{"server rejected", NewServerRejected("Key not found"), KindServerRejected},
		{"malformed", NewMalformed(nil), KindMalformed},
		{"signature", NewSignature(nil), KindSignature},
		{"shape", NewShape(nil), KindShape},
		{"wrapped", fmt.Errorf("activate: %w", NewShape(nil)), KindShape},
		{"foreign", errors.New("boom"), ""},
		{"nil", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "Key not found", Message(NewServerRejected("Key not found")))
	assert.Equal(t, MsgSignature, Message(NewSignature(errors.New("crypto/rsa: verification error"))))
	assert.Equal(t, MsgShape, Message(NewShape(nil)))
	assert.Equal(t, MsgMalformed, Message(errors.New("not ours")))
	assert.Equal(t, MsgTransport, Message(NewTransport("", nil)))
	assert.Equal(t, "Could not contact the server. Error message: timeout",
		Message(NewTransport("Could not contact the server. Error message: timeout", nil)))
}

func TestIsMatchesKindOnly(t *testing.T) {
	err := fmt.Errorf("check: %w", NewSignature(errors.New("bad padding")))

	assert.True(t, errors.Is(err, Signature))
	assert.False(t, errors.Is(err, Shape))
	assert.False(t, errors.Is(err, Malformed))
}

func TestSignatureMessageHidesCause(t *testing.T) {
	err := NewSignature(errors.New("modulus too short"))
	assert.NotContains(t, err.Error(), "modulus")
	assert.ErrorContains(t, errors.Unwrap(err), "modulus")
}
