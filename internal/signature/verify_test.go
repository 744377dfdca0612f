package signature_test

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winsbygroup.com/keyverify/internal/licerr"
	"winsbygroup.com/keyverify/internal/signature"
	"winsbygroup.com/keyverify/internal/testutil"
)

func TestVerify_RoundTrip(t *testing.T) {
	s := testutil.NewSigner(t)
	msg := []byte(`{"ProductId":3349,"Key":"ABCDE"}`)

	assert.True(t, signature.Verify(msg, s.Sign(t, msg), s.Public))
}

func TestVerify_SingleBitFlips(t *testing.T) {
	s := testutil.NewSigner(t)
	msg := []byte("ProductId=3349;Key=ABCDE")
	sig := s.Sign(t, msg)

	for i := 0; i < len(msg)*8; i += 7 {
		mutated := append([]byte(nil), msg...)
		mutated[i/8] ^= 1 << (i % 8)
		assert.False(t, signature.Verify(mutated, sig, s.Public), "message bit %d", i)
	}

	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	for _, i := range []int{0, 9, len(raw)*8/2 + 3, len(raw)*8 - 1} {
		mutated := append([]byte(nil), raw...)
		mutated[i/8] ^= 1 << (i % 8)
		assert.False(t, signature.Verify(msg, base64.StdEncoding.EncodeToString(mutated), s.Public), "signature bit %d", i)
	}
}

func TestVerify_RejectsGarbage(t *testing.T) {
	s := testutil.NewSigner(t)
	msg := []byte("payload")
	sig := s.Sign(t, msg)

	assert.False(t, signature.Verify(msg, "", s.Public))
	assert.False(t, signature.Verify(msg, "!!not base64!!", s.Public))
	assert.False(t, signature.Verify(msg, base64.StdEncoding.EncodeToString([]byte("short")), s.Public))
	assert.False(t, signature.Verify(msg, sig, nil))
	assert.False(t, signature.Verify(msg, sig, &signature.PublicKey{}))
	assert.False(t, signature.Verify(msg, sig, testutil.NewOtherSigner(t).Public))
}

func TestSeal(t *testing.T) {
	s := testutil.NewSigner(t)
	msg := []byte("signed bytes")
	payload := []byte(`{"Key":"ABCDE"}`)

	v, err := signature.Seal(msg, payload, s.Sign(t, msg), s.Public)
	require.NoError(t, err)
	assert.True(t, v.Valid())
	assert.Equal(t, payload, v.Payload())
	assert.Equal(t, msg, v.Message())

	_, err = signature.Seal([]byte("other bytes"), payload, s.Sign(t, msg), s.Public)
	assert.Equal(t, licerr.KindSignature, licerr.KindOf(err))
	assert.Equal(t, licerr.MsgSignature, licerr.Message(err))
}

func TestVerified_ZeroValueIsInvalid(t *testing.T) {
	var nilV *signature.Verified
	assert.False(t, nilV.Valid())
	assert.Nil(t, nilV.Payload())
	assert.False(t, (&signature.Verified{}).Valid())
	assert.Nil(t, (&signature.Verified{}).Payload())
}

func TestParse_XMLRoundTrip(t *testing.T) {
	s := testutil.NewSigner(t)

	key, err := signature.Parse(s.PublicXML(t))
	require.NoError(t, err)
	assert.Equal(t, 0, key.RSA().N.Cmp(s.Private.N))
	assert.Equal(t, s.Private.E, key.RSA().E)
}

func TestParse_PEM(t *testing.T) {
	s := testutil.NewSigner(t)

	pkix, err := x509.MarshalPKIXPublicKey(&s.Private.PublicKey)
	require.NoError(t, err)
	pkixPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pkix}))
	pkcs1PEM := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&s.Private.PublicKey)}))

	for name, in := range map[string]string{"pkix": pkixPEM, "pkcs1": pkcs1PEM} {
		t.Run(name, func(t *testing.T) {
			key, err := signature.Parse(in)
			require.NoError(t, err)
			assert.Equal(t, s.Public.Size(), key.Size())
		})
	}
}

func TestParse_Base64Wrapped(t *testing.T) {
	s := testutil.NewSigner(t)
	wrapped := base64.StdEncoding.EncodeToString([]byte(s.PublicXML(t)))

	key, err := signature.Parse(wrapped)
	require.NoError(t, err)
	assert.Equal(t, s.Public.Size(), key.Size())
}

func TestParse_Rejects(t *testing.T) {
	emptyXML, err := (&signature.PublicKey{}).MarshalXML()
	assert.Error(t, err)
	assert.Empty(t, emptyXML)

	_, err = signature.NewPublicKey(&rsa.PublicKey{N: big.NewInt(3233), E: 17})
	assert.Error(t, err)

	s := testutil.NewSigner(t)
	_, err = signature.NewPublicKey(&rsa.PublicKey{N: s.Private.N, E: 4})
	assert.Error(t, err)

	for _, in := range []string{
		"",
		"   ",
		"<RSAKeyValue><Modulus>%%%</Modulus><Exponent>AQAB</Exponent></RSAKeyValue>",
		"<RSAKeyValue><Modulus></Modulus><Exponent>AQAB</Exponent></RSAKeyValue>",
		"<NotAKey/>",
		"-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----",
		base64.StdEncoding.EncodeToString([]byte("plain text")),
	} {
		_, err := signature.Parse(in)
		assert.Error(t, err, in)
	}
}

func TestEmbedded(t *testing.T) {
	s := testutil.NewSigner(t)
	prev := signature.PublicKeyB64
	t.Cleanup(func() { signature.PublicKeyB64 = prev })

	signature.PublicKeyB64 = ""
	_, err := signature.Embedded()
	assert.ErrorIs(t, err, signature.ErrNoEmbeddedKey)

	signature.PublicKeyB64 = base64.StdEncoding.EncodeToString([]byte(s.PublicXML(t)))
	key, err := signature.Embedded()
	require.NoError(t, err)
	assert.Equal(t, s.Public.Size(), key.Size())
}
