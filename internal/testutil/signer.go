package testutil

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"sync"
	"testing"

	"winsbygroup.com/keyverify/internal/canonical"
	"winsbygroup.com/keyverify/internal/response"
	"winsbygroup.com/keyverify/internal/signature"
)

var (
	keyOnce sync.Once
	keyPriv *rsa.PrivateKey
	keyErr  error
)

// Signer signs license responses the way the licensing service does.
type Signer struct {
	Private *rsa.PrivateKey
	Public  *signature.PublicKey
}

// NewSigner returns a signer backed by a 2048-bit key shared across the test
// binary.
func NewSigner(t testing.TB) *Signer {
	t.Helper()

	keyOnce.Do(func() {
		keyPriv, keyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if keyErr != nil {
		t.Fatalf("generate rsa key: %v", keyErr)
	}
	return signerFor(t, keyPriv)
}

// NewOtherSigner returns a signer with a fresh key, for wrong-key tests.
func NewOtherSigner(t testing.TB) *Signer {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return signerFor(t, priv)
}

func signerFor(t testing.TB, priv *rsa.PrivateKey) *Signer {
	t.Helper()

	pub, err := signature.NewPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("wrap public key: %v", err)
	}
	return &Signer{Private: priv, Public: pub}
}

// PublicXML returns the public key in <RSAKeyValue> form.
func (s *Signer) PublicXML(t testing.TB) string {
	t.Helper()

	x, err := s.Public.MarshalXML()
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return x
}

// Sign returns the base64 PKCS#1 v1.5 SHA-256 signature of message.
func (s *Signer) Sign(t testing.TB, message []byte) string {
	t.Helper()

	digest := sha256.Sum256(message)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.Private, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return base64.StdEncoding.EncodeToString(sig)
}

// Fields is the JSON field set of a license blob.
type Fields map[string]any

// LicenseFields returns a valid, unexpired license with no activations.
func LicenseFields() Fields {
	return Fields{
		"ProductId":         3349,
		"ID":                42,
		"Key":               "ICVLD-VVSZR-ZTICT-YKGXL",
		"Created":           1700000000,
		"Expires":           4102444800,
		"Period":            30,
		"F1":                true,
		"F2":                false,
		"F3":                false,
		"F4":                false,
		"F5":                true,
		"F6":                false,
		"F7":                false,
		"F8":                false,
		"Notes":             "",
		"Block":             false,
		"GlobalId":          9001,
		"Customer":          nil,
		"ActivatedMachines": []any{},
		"TrialActivation":   false,
		"MaxNoOfMachines":   1,
		"AllowedMachines":   "",
		"DataObjects":       []any{},
		"SignDate":          1700000100,
	}
}

// Machine returns an activated machine entry.
func Machine(mid string) map[string]any {
	return map[string]any{
		"Mid":          mid,
		"IP":           "10.0.0.1",
		"Time":         1700000050,
		"FriendlyName": "",
	}
}

// WithMachines returns a copy of f with the given activations.
func (f Fields) WithMachines(mids ...string) Fields {
	out := f.With("ActivatedMachines", nil)
	list := make([]any, 0, len(mids))
	for _, mid := range mids {
		list = append(list, Machine(mid))
	}
	out["ActivatedMachines"] = list
	return out
}

// With returns a copy of f with name set to v.
func (f Fields) With(name string, v any) Fields {
	out := make(Fields, len(f)+1)
	for k, val := range f {
		out[k] = val
	}
	out[name] = v
	return out
}

// Without returns a copy of f with name removed.
func (f Fields) Without(name string) Fields {
	out := f.With(name, nil)
	delete(out, name)
	return out
}

type bodyConfig struct {
	method   canonical.SignMethod
	metadata json.RawMessage
	message  string
}

// BodyOption adjusts a signed response body.
type BodyOption func(*bodyConfig)

func WithSignMethod(m canonical.SignMethod) BodyOption {
	return func(c *bodyConfig) { c.method = m }
}

func WithMetadataJSON(raw string) BodyOption {
	return func(c *bodyConfig) { c.metadata = json.RawMessage(raw) }
}

func WithServerMessage(msg string) BodyOption {
	return func(c *bodyConfig) { c.message = msg }
}

// Envelope is the success envelope as the service sends it.
type Envelope struct {
	LicenseKey string          `json:"licenseKey"`
	Signature  string          `json:"signature"`
	Result     int             `json:"result"`
	Message    string          `json:"message"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// SignedEnvelope encodes fields and signs them. Blob signing is the default.
func (s *Signer) SignedEnvelope(t testing.TB, fields Fields, opts ...BodyOption) Envelope {
	t.Helper()

	cfg := bodyConfig{method: canonical.SignMethodBlob}
	for _, opt := range opts {
		opt(&cfg)
	}

	blob, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal fields: %v", err)
	}
	env := Envelope{
		LicenseKey: base64.StdEncoding.EncodeToString(blob),
		Result:     response.ResultSuccess,
		Message:    cfg.message,
		Metadata:   cfg.metadata,
	}

	ser, err := canonical.For(cfg.method)
	if err != nil {
		t.Fatalf("serializer: %v", err)
	}
	message, _, err := ser.Canonical(&response.RawResponse{LicenseKey: env.LicenseKey})
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	env.Signature = s.Sign(t, message)
	return env
}

// SignedBody returns the JSON body of SignedEnvelope.
func (s *Signer) SignedBody(t testing.TB, fields Fields, opts ...BodyOption) []byte {
	t.Helper()
	return EnvelopeBody(t, s.SignedEnvelope(t, fields, opts...))
}

// EnvelopeBody marshals env.
func EnvelopeBody(t testing.TB, env Envelope) []byte {
	t.Helper()

	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return b
}

// ErrorBody returns a result == 1 envelope.
func ErrorBody(message string) []byte {
	b, _ := json.Marshal(map[string]any{"result": response.ResultError, "message": message})
	return b
}
