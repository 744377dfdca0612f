// Package canonical reconstructs the exact bytes the licensing service signed.
//
// Two serialization modes exist, selected by the SignMethod the request was
// made with. Reconstruction failures are reported as signature failures: if the
// signed bytes cannot be rebuilt, nothing in the response can be trusted.
package canonical

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"winsbygroup.com/keyverify/internal/licerr"
	"winsbygroup.com/keyverify/internal/response"
)

// SignMethod selects how the signed message is rebuilt from a response.
type SignMethod int

const (
	// SignMethodFields signs a fixed-order, delimited rendering of the license
	// fields (ModelVersion 1).
	SignMethodFields SignMethod = 0
	// SignMethodBlob signs the decoded licenseKey bytes as-is (ModelVersion 2).
	SignMethodBlob SignMethod = 1
)

func (m SignMethod) String() string {
	switch m {
	case SignMethodFields:
		return "fields"
	case SignMethodBlob:
		return "blob"
	default:
		return "SignMethod(" + strconv.Itoa(int(m)) + ")"
	}
}

// ModelVersion is the request tag that goes with the method.
func (m SignMethod) ModelVersion() int {
	if m == SignMethodFields {
		return response.ModelVersionFields
	}
	return response.ModelVersionBlob
}

// Serializer rebuilds the signed message of a decoded response.
//
// message is the byte sequence the signature covers. payload is the JSON field
// set the license builder reads; it is returned only alongside a message so a
// caller cannot read fields without first checking what was signed.
type Serializer interface {
	Method() SignMethod
	Canonical(raw *response.RawResponse) (message, payload []byte, err error)
}

// For returns the serializer registered for method.
func For(method SignMethod) (Serializer, error) {
	switch method {
	case SignMethodFields:
		return fieldsSerializer{}, nil
	case SignMethodBlob:
		return blobSerializer{}, nil
	default:
		return nil, licerr.NewSignature(fmt.Errorf("unsupported sign method %d", int(method)))
	}
}

// Methods lists the registered modes.
func Methods() []SignMethod {
	return []SignMethod{SignMethodFields, SignMethodBlob}
}

func decodeBlob(raw *response.RawResponse) ([]byte, error) {
	if raw == nil {
		return nil, licerr.NewSignature(errors.New("nil response"))
	}
	s := strings.TrimSpace(raw.LicenseKey)
	if s == "" {
		return nil, licerr.NewSignature(errors.New("empty license blob"))
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, licerr.NewSignature(fmt.Errorf("decode license blob: %w", err))
	}
	return b, nil
}

type blobSerializer struct{}

func (blobSerializer) Method() SignMethod { return SignMethodBlob }

func (blobSerializer) Canonical(raw *response.RawResponse) ([]byte, []byte, error) {
	b, err := decodeBlob(raw)
	if err != nil {
		return nil, nil, err
	}
	return b, b, nil
}

type valueKind int

const (
	kindInt valueKind = iota
	kindBool
	kindString
	kindObject
	kindList
)

// field is one member of the signed schema. members describes an object, or
// the entries of a list.
type field struct {
	name    string
	kind    valueKind
	members []field
}

var customerFields = []field{
	{"Id", kindInt, nil},
	{"Name", kindString, nil},
	{"Email", kindString, nil},
	{"CompanyName", kindString, nil},
	{"Created", kindInt, nil},
}

var machineFields = []field{
	{"Mid", kindString, nil},
	{"IP", kindString, nil},
	{"Time", kindInt, nil},
	{"FriendlyName", kindString, nil},
}

var dataObjectFields = []field{
	{"Id", kindInt, nil},
	{"Name", kindString, nil},
	{"StringValue", kindString, nil},
	{"IntValue", kindInt, nil},
}

// licenseFields is the protocol order of the signed license fields.
var licenseFields = []field{
	{"ProductId", kindInt, nil},
	{"ID", kindInt, nil},
	{"Key", kindString, nil},
	{"Created", kindInt, nil},
	{"Expires", kindInt, nil},
	{"Period", kindInt, nil},
	{"F1", kindBool, nil},
	{"F2", kindBool, nil},
	{"F3", kindBool, nil},
	{"F4", kindBool, nil},
	{"F5", kindBool, nil},
	{"F6", kindBool, nil},
	{"F7", kindBool, nil},
	{"F8", kindBool, nil},
	{"Notes", kindString, nil},
	{"Block", kindBool, nil},
	{"GlobalId", kindInt, nil},
	{"Customer", kindObject, customerFields},
	{"ActivatedMachines", kindList, machineFields},
	{"TrialActivation", kindBool, nil},
	{"MaxNoOfMachines", kindInt, nil},
	{"AllowedMachines", kindString, nil},
	{"DataObjects", kindList, dataObjectFields},
	{"SignDate", kindInt, nil},
}

// fieldsSerializer renders every schema member in order:
//
//	absent or null  ~
//	integer         <decimal>;
//	boolean         True; or False;
//	string          <byte length>:<bytes>;
//	object          { members }
//	list            [ objects ]
//
// The rendering is prefix-free, so no two field sets share a message. The
// payload handed to the builder is re-encoded from exactly the values that
// were rendered.
type fieldsSerializer struct{}

func (fieldsSerializer) Method() SignMethod { return SignMethodFields }

func (fieldsSerializer) Canonical(raw *response.RawResponse) ([]byte, []byte, error) {
	blob, err := decodeBlob(raw)
	if err != nil {
		return nil, nil, err
	}

	fields, err := decodeFields(blob)
	if err != nil {
		return nil, nil, licerr.NewSignature(fmt.Errorf("decode license fields: %w", err))
	}

	var b bytes.Buffer
	renderObject(&b, fields, licenseFields)

	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, licerr.NewSignature(fmt.Errorf("encode license fields: %w", err))
	}
	return b.Bytes(), payload, nil
}

// decodeFields reads data as a license object. Members outside the schema
// (including any letter-case variant of a known name), repeated members,
// mistyped values and trailing data are errors.
func decodeFields(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	obj, err := readObject(dec, licenseFields)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("not an object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after license fields")
	}
	return obj, nil
}

func lookup(schema []field, name string) (field, bool) {
	for _, f := range schema {
		if f.name == name {
			return f, true
		}
	}
	return field{}, false
}

// readObject returns nil for a JSON null.
func readObject(dec *json.Decoder, schema []field) (map[string]any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	obj := make(map[string]any, len(schema))
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, _ := tok.(string)
		f, ok := lookup(schema, name)
		if !ok {
			return nil, fmt.Errorf("unknown member %q", name)
		}
		if _, dup := obj[name]; dup {
			return nil, fmt.Errorf("duplicate member %q", name)
		}
		v, err := readValue(dec, f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		obj[name] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

// readList returns nil for a JSON null. Entries must be objects.
func readList(dec *json.Decoder, members []field) ([]any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("expected list, got %v", tok)
	}

	items := []any{}
	for dec.More() {
		obj, err := readObject(dec, members)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", len(items), err)
		}
		if obj == nil {
			return nil, fmt.Errorf("[%d]: null entry", len(items))
		}
		items = append(items, obj)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return items, nil
}

func readValue(dec *json.Decoder, f field) (any, error) {
	switch f.kind {
	case kindObject:
		obj, err := readObject(dec, f.members)
		if err != nil || obj == nil {
			return nil, err
		}
		return obj, nil
	case kindList:
		items, err := readList(dec, f.members)
		if err != nil || items == nil {
			return nil, err
		}
		return items, nil
	}

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}

	switch f.kind {
	case kindInt:
		n, ok := tok.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected integer, got %v", tok)
		}
		i, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %s", n)
		}
		return i, nil
	case kindBool:
		b, ok := tok.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %v", tok)
		}
		return b, nil
	default:
		s, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %v", tok)
		}
		return s, nil
	}
}

func renderObject(b *bytes.Buffer, obj map[string]any, schema []field) {
	for _, f := range schema {
		renderValue(b, obj[f.name], f)
	}
}

func renderValue(b *bytes.Buffer, v any, f field) {
	switch v := v.(type) {
	case int64:
		b.WriteString(strconv.FormatInt(v, 10))
		b.WriteByte(';')
	case bool:
		if v {
			b.WriteString("True;")
		} else {
			b.WriteString("False;")
		}
	case string:
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
		b.WriteByte(';')
	case map[string]any:
		b.WriteByte('{')
		renderObject(b, v, f.members)
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for _, item := range v {
			renderValue(b, item, f)
		}
		b.WriteByte(']')
	default:
		b.WriteByte('~')
	}
}
