package envelope_test

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-fwlink/blockcodec"
	"github.com/moffa90/go-fwlink/envelope"
	"github.com/moffa90/go-fwlink/signer"
)

func compressed(t *testing.T, plain []byte, blockSize int) []byte {
	t.Helper()
	c, err := blockcodec.Compress(plain, blockSize)
	require.NoError(t, err)
	return c
}

func TestV2RoundTrip(t *testing.T) {
	plain := bytes.Repeat([]byte("keystone"), 5000)
	v := &envelope.V2{
		Header:  envelope.NewV2Header(uint32(len(plain)), []byte("extra")),
		Payload: compressed(t, plain, 4096),
	}
	copy(v.Signature1[:], bytes.Repeat([]byte("a"), envelope.SignatureHexSize))
	copy(v.Signature2[:], bytes.Repeat([]byte("b"), envelope.SignatureHexSize))

	path := filepath.Join(t.TempDir(), "keystone3-ota2.bin")
	require.NoError(t, envelope.WriteV2(path, v))

	got, err := envelope.ReadV2(path)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	size, err := got.DecompressedSize()
	require.NoError(t, err)
	assert.Equal(t, uint32(len(plain)), size)
}

func TestV2HeaderLength(t *testing.T) {
	header := envelope.NewV2Header(10, nil)
	var buf bytes.Buffer
	require.NoError(t, envelope.EncodeV2(&buf, &envelope.V2{Header: header, Payload: []byte{1}}))

	raw := buf.Bytes()
	assert.Equal(t, uint32(len(header)+envelope.SignatureBlockSize), binary.LittleEndian.Uint32(raw))
	assert.Equal(t, envelope.Magic, string(raw[4:12]))
	assert.Equal(t, uint32(10), binary.BigEndian.Uint32(raw[12:16]))
	assert.Equal(t, byte(0x00), raw[len(raw)-2])
}

func TestDecodeV2Errors(t *testing.T) {
	_, err := envelope.DecodeV2(bytes.NewReader(binary.LittleEndian.AppendUint32(nil, 255)))
	var fe *envelope.FormatError
	require.True(t, errors.As(err, &fe), "header shorter than the signature block")
	assert.Equal(t, "v2", fe.Variant)

	v := &envelope.V2{Header: []byte("~fwdata?\x00\x00\x00\x01")}
	_, err = v.DecompressedSize()
	assert.ErrorContains(t, err, "bad magic")

	v = &envelope.V2{Header: []byte("~fwdata!")}
	_, err = v.DecompressedSize()
	assert.ErrorContains(t, err, "too short")
}

func TestDecompressV2Sizes(t *testing.T) {
	for _, size := range []int{0, 1, 4095, 4096, 4097, 100_000} {
		plain := randomBytes(size)
		for i := 0; i < size; i += 3 {
			plain[i] = 0
		}

		got, err := envelope.DecompressV2(compressed(t, plain, 4096), uint32(size), blockcodec.Decoder{})
		require.NoError(t, err, "size=%d", size)
		assert.Len(t, got, size)
		assert.True(t, bytes.Equal(plain, got), "size=%d", size)
	}
}

func TestDecompressV2TruncatedStream(t *testing.T) {
	plain := bytes.Repeat([]byte("abc"), 10_000)
	stream := compressed(t, plain, 4096)

	_, err := envelope.DecompressV2(stream, uint32(len(plain)+1), blockcodec.Decoder{})
	assert.ErrorIs(t, err, envelope.ErrTruncatedStream)

	_, err = envelope.DecompressV2(stream[:len(stream)-3], uint32(len(plain)), blockcodec.Decoder{})
	assert.ErrorIs(t, err, envelope.ErrTruncatedStream)
}

func TestDecompressV2RejectsMismatch(t *testing.T) {
	plain := bytes.Repeat([]byte("abc"), 10_000)
	stream := compressed(t, plain, 4096)

	_, err := envelope.DecompressV2(stream, uint32(len(plain)-1), blockcodec.Decoder{})
	assert.ErrorContains(t, err, "declared")

	_, err = envelope.DecompressV2(append(stream, 0x00), uint32(len(plain)), blockcodec.Decoder{})
	assert.ErrorContains(t, err, "trailing")
}

func TestSignV2(t *testing.T) {
	key := testKey(t)
	wantPub, err := signer.PublicKeyHex(key)
	require.NoError(t, err)

	plain := bytes.Repeat([]byte("firmware-block"), 3000)
	stream := compressed(t, plain, 8192)
	header := envelope.NewV2Header(uint32(len(plain)), []byte{0x01, 0x02})

	v, err := envelope.SignV2(header, stream, key, signer.Secp256k1{}, blockcodec.Decoder{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "signed.bin")
	require.NoError(t, envelope.WriteV2(path, v))
	got, err := envelope.ReadV2(path)
	require.NoError(t, err)
	assert.Equal(t, header, got.Header)

	decompressed, err := got.Decompress(blockcodec.Decoder{})
	require.NoError(t, err)
	require.Equal(t, plain, decompressed)

	resigned, err := envelope.SignV1(nil, decompressed, key, signer.Secp256k1{})
	require.NoError(t, err)
	sig2, _ := resigned.Signature()
	assert.Equal(t, sig2, string(got.Signature2[:]), "signature 2 covers the decompressed payload")

	first, err := signer.Secp256k1{}.Sign(stream, key)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(first), string(got.Signature1[:]), "signature 1 covers the compressed payload")

	for _, recoverFn := range []func() ([]envelope.Candidate, error){
		func() ([]envelope.Candidate, error) { return envelope.RecoverPublicKeyV2(got, signer.Secp256k1{}) },
		func() ([]envelope.Candidate, error) {
			return envelope.RecoverDecompressedPublicKeyV2(got, signer.Secp256k1{}, blockcodec.Decoder{})
		},
	} {
		candidates, err := recoverFn()
		require.NoError(t, err)
		var keys []string
		for _, c := range candidates {
			keys = append(keys, c.PublicKeyHex)
		}
		assert.Contains(t, keys, wantPub)
	}
}

func TestSignV2RejectsBadHeader(t *testing.T) {
	_, err := envelope.SignV2([]byte("short"), nil, testKey(t), signer.Secp256k1{}, blockcodec.Decoder{})
	var fe *envelope.FormatError
	assert.True(t, errors.As(err, &fe))
}
