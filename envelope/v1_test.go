package envelope_test

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-fwlink/envelope"
	"github.com/moffa90/go-fwlink/signer"
)

const testKeyHex = "c9afa9d845ba75166b5c215767b1d6934e50c3db36e89b127b8a622b120f6721"

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := signer.ParsePrivateKey(testKeyHex)
	require.NoError(t, err)
	return key
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(b)
	return b
}

func TestV1RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystone3.bin")
	header := envelope.Header{"foo": "bar"}
	payload := randomBytes(10_000)

	require.NoError(t, envelope.WriteV1(path, header, payload))

	gotHeader, gotPayload, err := envelope.ReadV1(path)
	require.NoError(t, err)
	assert.Equal(t, header, gotHeader)
	assert.Equal(t, payload, gotPayload)
}

func TestV1Layout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, envelope.EncodeV1(&buf, envelope.Header{"b": "2", "a": "1"}, []byte{0xAA, 0xBB}))

	raw := buf.Bytes()
	n := binary.LittleEndian.Uint32(raw)
	assert.Equal(t, `{"a":"1","b":"2"}`, string(raw[4:4+n]))
	assert.Equal(t, byte(0x00), raw[4+n])
	assert.Equal(t, []byte{0xAA, 0xBB}, raw[5+n:])
}

func TestV1PreservesNumbers(t *testing.T) {
	var buf bytes.Buffer
	raw := []byte(`{"size":18446744073709551615,"ratio":0.1,"nested":{"k":[1,2]}}`)
	buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(raw))))
	buf.Write(raw)
	buf.WriteByte(0x00)

	header, payload, err := envelope.DecodeV1(&buf)
	require.NoError(t, err)
	assert.Empty(t, payload)
	assert.Equal(t, json.Number("18446744073709551615"), header["size"])

	var out bytes.Buffer
	require.NoError(t, envelope.EncodeV1(&out, header, nil))
	assert.Contains(t, out.String(), `"size":18446744073709551615`)
	assert.Contains(t, out.String(), `"ratio":0.1`)
}

func TestDecodeV1Errors(t *testing.T) {
	withHeader := func(h string, sep bool) []byte {
		b := binary.LittleEndian.AppendUint32(nil, uint32(len(h)))
		b = append(b, h...)
		if sep {
			b = append(b, 0x00)
		}
		return b
	}

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "empty", input: nil},
		{name: "short length", input: []byte{0x01, 0x00}},
		{name: "truncated header", input: append(binary.LittleEndian.AppendUint32(nil, 100), '{')},
		{name: "missing separator", input: withHeader(`{}`, false)},
		{name: "invalid json", input: withHeader(`{"a":`, true)},
		{name: "not an object", input: withHeader(`null`, true)},
		{name: "oversized length", input: binary.LittleEndian.AppendUint32(nil, envelope.MaxHeaderSize+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := envelope.DecodeV1(bytes.NewReader(tt.input))
			var fe *envelope.FormatError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, "v1", fe.Variant)
		})
	}
}

func TestSignV1(t *testing.T) {
	key := testKey(t)
	wantPub, err := signer.PublicKeyHex(key)
	require.NoError(t, err)

	header := envelope.Header{"name": "keystone3.bin", "signature": "old"}
	payload := randomBytes(4096)

	signed, err := envelope.SignV1(header, payload, key, signer.Secp256k1{})
	require.NoError(t, err)

	assert.Equal(t, "old", header["signature"], "input header is not modified")
	sig, ok := signed.Signature()
	require.True(t, ok)
	assert.Len(t, sig, envelope.SignatureHexSize)
	assert.Equal(t, sig, hex.EncodeToString(mustDecodeHex(t, sig)), "signature is lowercase hex")
	assert.Equal(t, "keystone3.bin", signed["name"])

	candidates, err := envelope.RecoverPublicKeyV1(payload, sig, signer.Secp256k1{})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(candidates), 4)

	found := false
	for _, c := range candidates {
		if c.PublicKeyHex == wantPub {
			found = true
		}
	}
	assert.True(t, found, "signer public key is among the candidates")
}

func TestRecoverPublicKeyV1RejectsMalformedSignature(t *testing.T) {
	_, err := envelope.RecoverPublicKeyV1(nil, "xyz", signer.Secp256k1{})
	var fe *envelope.FormatError
	assert.True(t, errors.As(err, &fe))

	_, err = envelope.RecoverPublicKeyV1(nil, "abcd", signer.Secp256k1{})
	assert.True(t, errors.As(err, &fe))
}

type failingRecoverer struct{ ok int }

func (r failingRecoverer) Recover(msg, sig []byte, id int) ([]byte, error) {
	if id == r.ok {
		return []byte{0x04, byte(id)}, nil
	}
	return nil, errors.New("no point")
}

func TestRecoverAllReportsEveryAttempt(t *testing.T) {
	attempts := envelope.RecoverAll([]byte("m"), make([]byte, 64), failingRecoverer{ok: 2})
	require.Len(t, attempts, 4)
	for i, a := range attempts {
		assert.Equal(t, i, a.RecoveryID)
		if i == 2 {
			assert.NoError(t, a.Err)
		} else {
			assert.Error(t, a.Err)
		}
	}

	candidates, err := envelope.RecoverPublicKeyV1([]byte("m"), hex.EncodeToString(make([]byte, 64)), failingRecoverer{ok: 2})
	require.NoError(t, err)
	assert.Equal(t, []envelope.Candidate{{RecoveryID: 2, PublicKeyHex: "0402"}}, candidates)
}

func mustDecodeHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}
