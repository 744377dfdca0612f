package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winsbygroup.com/keyverify/internal/licerr"
)

func TestDecode_Success(t *testing.T) {
	body := `{"licenseKey":"eyJQcm9kdWN0SWQiOjN9","signature":"c2ln","result":0,"message":""}`

	resp, err := Decode([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, ResultSuccess, resp.Result)
	assert.Equal(t, "eyJQcm9kdWN0SWQiOjN9", resp.LicenseKey)
	assert.Equal(t, "c2ln", resp.Signature)
	assert.Nil(t, resp.Metadata)
}

func TestDecode_KeepsMetadataVerbatim(t *testing.T) {
	body := `{"licenseKey":"e30=","signature":"c2ln","result":0,"message":"","metadata":{"licenseStatus":{"isValid":true}}}`

	resp, err := Decode([]byte(body))
	require.NoError(t, err)
	assert.JSONEq(t, `{"licenseStatus":{"isValid":true}}`, string(resp.Metadata))
}

func TestDecode_NullMetadataIsAbsent(t *testing.T) {
	body := `{"licenseKey":"e30=","signature":"c2ln","result":0,"metadata":null}`

	resp, err := Decode([]byte(body))
	require.NoError(t, err)
	assert.Nil(t, resp.Metadata)
}

func TestDecode_ServerRejected(t *testing.T) {
	resp, err := Decode([]byte(`{"result":1,"message":"Key not found"}`))

	assert.Nil(t, resp)
	assert.Equal(t, licerr.KindServerRejected, licerr.KindOf(err))
	assert.Equal(t, "Key not found", licerr.Message(err))
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"whitespace":     "  \n",
		"not json":       `<html>502 Bad Gateway</html>`,
		"truncated":      `{"result":0,"licenseKey":"e30=`,
		"missing result": `{"message":"hello"}`,
		"result string":  `{"result":"0"}`,
		"unknown result": `{"result":7,"message":"?"}`,
		"array":          `[1,2,3]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp, err := Decode([]byte(body))
			assert.Nil(t, resp)
			assert.Equal(t, licerr.KindMalformed, licerr.KindOf(err))
			assert.Equal(t, licerr.MsgMalformed, licerr.Message(err))
		})
	}
}

func TestDecode_UnsignedSuccessIsSignatureFailure(t *testing.T) {
	for _, body := range []string{
		`{"result":0,"message":""}`,
		`{"result":0,"licenseKey":"e30="}`,
		`{"result":0,"signature":"c2ln"}`,
	} {
		_, err := Decode([]byte(body))
		assert.Equal(t, licerr.KindSignature, licerr.KindOf(err), body)
	}
}

func TestDecodeFlat(t *testing.T) {
	flat, err := DecodeFlat([]byte(`{"result":0,"message":""}`))
	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, flat.Result)

	_, err = DecodeFlat([]byte(`{"result":1,"message":"Machine code not found"}`))
	assert.Equal(t, licerr.KindServerRejected, licerr.KindOf(err))
	assert.Equal(t, "Machine code not found", licerr.Message(err))

	_, err = DecodeFlat([]byte(`nope`))
	assert.Equal(t, licerr.KindMalformed, licerr.KindOf(err))
}
