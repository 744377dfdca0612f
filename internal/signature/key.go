package signature

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"encoding/xml"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// minModulusBits rejects keys too small to be a real service key.
const minModulusBits = 1024

// PublicKey is the service's RSA verification key.
type PublicKey struct {
	rsa *rsa.PublicKey
}

// Size returns the modulus length in bytes, which is also the signature length.
func (k *PublicKey) Size() int {
	if k == nil || k.rsa == nil {
		return 0
	}
	return k.rsa.Size()
}

// RSA returns the underlying key.
func (k *PublicKey) RSA() *rsa.PublicKey {
	if k == nil {
		return nil
	}
	return k.rsa
}

// NewPublicKey wraps an existing RSA key.
func NewPublicKey(pub *rsa.PublicKey) (*PublicKey, error) {
	if err := checkKey(pub); err != nil {
		return nil, err
	}
	return &PublicKey{rsa: pub}, nil
}

func checkKey(pub *rsa.PublicKey) error {
	if pub == nil || pub.N == nil {
		return errors.New("public key is empty")
	}
	if pub.N.BitLen() < minModulusBits {
		return fmt.Errorf("modulus is %d bits, want at least %d", pub.N.BitLen(), minModulusBits)
	}
	if pub.E < 3 || pub.E%2 == 0 {
		return fmt.Errorf("invalid public exponent %d", pub.E)
	}
	return nil
}

type rsaKeyValue struct {
	XMLName  xml.Name `xml:"RSAKeyValue"`
	Modulus  string   `xml:"Modulus"`
	Exponent string   `xml:"Exponent"`
}

// ParseXML reads the <RSAKeyValue> form the service publishes, with the
// modulus and exponent as base64 big-endian integers.
func ParseXML(s string) (*PublicKey, error) {
	var kv rsaKeyValue
	if err := xml.Unmarshal([]byte(strings.TrimSpace(s)), &kv); err != nil {
		return nil, fmt.Errorf("parse RSAKeyValue: %w", err)
	}

	n, err := decodeBase64Flexible(strings.TrimSpace(kv.Modulus))
	if err != nil || len(n) == 0 {
		return nil, fmt.Errorf("parse RSAKeyValue: invalid modulus")
	}
	e, err := decodeBase64Flexible(strings.TrimSpace(kv.Exponent))
	if err != nil || len(e) == 0 || len(e) > 4 {
		return nil, fmt.Errorf("parse RSAKeyValue: invalid exponent")
	}

	pub := &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(new(big.Int).SetBytes(e).Int64()),
	}
	return NewPublicKey(pub)
}

// ParsePEM reads a PKIX ("PUBLIC KEY") or PKCS#1 ("RSA PUBLIC KEY") block.
func ParsePEM(s string) (*PublicKey, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(s)))
	if block == nil {
		return nil, errors.New("parse PEM: no PEM block found")
	}

	switch block.Type {
	case "PUBLIC KEY":
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PEM: %w", err)
		}
		pub, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("parse PEM: key is %T, not RSA", parsed)
		}
		return NewPublicKey(pub)
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PEM: %w", err)
		}
		return NewPublicKey(pub)
	default:
		return nil, fmt.Errorf("parse PEM: unsupported block type %q", block.Type)
	}
}

// Parse accepts either key form.
func Parse(s string) (*PublicKey, error) {
	t := strings.TrimSpace(s)
	switch {
	case t == "":
		return nil, errors.New("public key is empty")
	case strings.HasPrefix(t, "-----BEGIN"):
		return ParsePEM(t)
	case strings.HasPrefix(t, "<"):
		return ParseXML(t)
	default:
		// a base64 wrapped key, as embedded at build time
		decoded, err := decodeBase64Flexible(t)
		if err != nil {
			return nil, fmt.Errorf("public key is neither XML, PEM nor base64: %w", err)
		}
		inner := strings.TrimSpace(string(decoded))
		if strings.HasPrefix(inner, "-----BEGIN") || strings.HasPrefix(inner, "<") {
			return Parse(inner)
		}
		return nil, errors.New("decoded public key is neither XML nor PEM")
	}
}

// MarshalXML renders the key in the <RSAKeyValue> form.
func (k *PublicKey) MarshalXML() (string, error) {
	if k == nil || k.rsa == nil {
		return "", errors.New("public key is empty")
	}
	kv := rsaKeyValue{
		Modulus:  base64.StdEncoding.EncodeToString(k.rsa.N.Bytes()),
		Exponent: base64.StdEncoding.EncodeToString(big.NewInt(int64(k.rsa.E)).Bytes()),
	}
	out, err := xml.Marshal(kv)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func decodeBase64Flexible(value string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(value); err == nil {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(value); err == nil {
		return b, nil
	}
	if b, err := base64.URLEncoding.DecodeString(value); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(value)
}
