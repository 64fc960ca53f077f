package envelope

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const (
	// Magic starts every v2 header
	Magic = "~fwdata!"

	// SignatureBlockSize is the size of the two hex signatures
	SignatureBlockSize = 2 * SignatureHexSize

	// minV2HeaderSize covers the magic and the decompressed size
	minV2HeaderSize = len(Magic) + 4
)

// V2 is a v2 envelope.
type V2 struct {
	// Header is the header without the signature block
	Header []byte

	// Signature1 is the hex signature of the compressed payload
	Signature1 [SignatureHexSize]byte

	// Signature2 is the hex signature of the decompressed payload
	Signature2 [SignatureHexSize]byte

	// Payload is the compressed block stream
	Payload []byte
}

// DecompressedSize returns the decompressed payload size declared in the header.
func (v *V2) DecompressedSize() (uint32, error) {
	if len(v.Header) < minV2HeaderSize {
		return 0, &FormatError{Variant: "v2", Offset: lengthSize, Reason: fmt.Sprintf("header of %d bytes too short for magic and size", len(v.Header))}
	}
	if string(v.Header[:len(Magic)]) != Magic {
		return 0, &FormatError{Variant: "v2", Offset: lengthSize, Reason: fmt.Sprintf("bad magic %q", v.Header[:len(Magic)])}
	}
	return binary.BigEndian.Uint32(v.Header[len(Magic):]), nil
}

// ReadV2 reads a v2 envelope from path.
func ReadV2(path string) (*V2, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return DecodeV2(f)
}

// DecodeV2 reads a v2 envelope from any io.Reader. The trailing
// SignatureBlockSize bytes of the header are split off as the signatures.
func DecodeV2(r io.Reader) (*V2, error) {
	block, err := readHeaderBlock("v2", r, SignatureBlockSize)
	if err != nil {
		return nil, err
	}

	split := len(block) - SignatureBlockSize
	v := &V2{Header: block[:split]}
	copy(v.Signature1[:], block[split:])
	copy(v.Signature2[:], block[split+SignatureHexSize:])

	v.Payload, err = io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return v, nil
}

// EncodeV2 writes a v2 envelope. The length prefix is len(Header) plus
// SignatureBlockSize.
func EncodeV2(w io.Writer, v *V2) error {
	return writeEnvelope(w, v.Payload, v.Header, v.Signature1[:], v.Signature2[:])
}

// WriteV2 writes a v2 envelope to path, replacing any existing file.
func WriteV2(path string, v *V2) error {
	var buf bytes.Buffer
	if err := EncodeV2(&buf, v); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// DecompressV2 decodes payload block by block until size bytes have been
// produced. Blocks must end exactly at size and consume the whole payload.
func DecompressV2(payload []byte, size uint32, d BlockDecoder) ([]byte, error) {
	out := make([]byte, 0, size)
	off := 0
	for uint64(len(out)) < uint64(size) {
		if off >= len(payload) {
			return nil, &FormatError{Variant: "v2", Offset: int64(off), Reason: fmt.Sprintf("decompressed %d of %d bytes", len(out), size), Err: ErrTruncatedStream}
		}

		n, err := d.NextBlockSize(payload[off:])
		if err != nil {
			return nil, &FormatError{Variant: "v2", Offset: int64(off), Reason: "bad block header", Err: err}
		}
		if n <= 0 || n > len(payload)-off {
			return nil, &FormatError{Variant: "v2", Offset: int64(off), Reason: fmt.Sprintf("block of %d bytes, %d remain", n, len(payload)-off), Err: ErrTruncatedStream}
		}

		block, err := d.DecodeBlock(payload[off : off+n])
		if err != nil {
			return nil, &FormatError{Variant: "v2", Offset: int64(off), Reason: "bad block", Err: err}
		}
		out = append(out, block...)
		off += n
	}

	if uint64(len(out)) != uint64(size) {
		return nil, &FormatError{Variant: "v2", Offset: int64(off), Reason: fmt.Sprintf("blocks decode to %d bytes, declared %d", len(out), size)}
	}
	if off != len(payload) {
		return nil, &FormatError{Variant: "v2", Offset: int64(off), Reason: fmt.Sprintf("%d trailing bytes after last block", len(payload)-off)}
	}
	return out, nil
}

// Decompress decodes the payload using the size declared in the header.
func (v *V2) Decompress(d BlockDecoder) ([]byte, error) {
	size, err := v.DecompressedSize()
	if err != nil {
		return nil, err
	}
	return DecompressV2(v.Payload, size, d)
}

// SignV2 builds a signed v2 envelope: signature 1 over payload, signature 2
// over its decompressed form. header is the header without the signature
// block and is copied.
func SignV2(header, payload, privateKey []byte, s Signer, d BlockDecoder) (*V2, error) {
	v := &V2{
		Header:  append([]byte(nil), header...),
		Payload: payload,
	}

	plain, err := v.Decompress(d)
	if err != nil {
		return nil, err
	}

	sig1, err := sign("v2", s, payload, privateKey)
	if err != nil {
		return nil, err
	}
	sig2, err := sign("v2", s, plain, privateKey)
	if err != nil {
		return nil, err
	}
	copy(v.Signature1[:], sig1)
	copy(v.Signature2[:], sig2)
	return v, nil
}

// RecoverPublicKeyV2 returns the public keys recoverable from signature 1
// over the compressed payload.
func RecoverPublicKeyV2(v *V2, r Recoverer) ([]Candidate, error) {
	sig, err := decodeSignature("v2", v.Signature1[:])
	if err != nil {
		return nil, err
	}
	return candidates(RecoverAll(v.Payload, sig, r)), nil
}

// RecoverDecompressedPublicKeyV2 returns the public keys recoverable from
// signature 2 over the decompressed payload.
func RecoverDecompressedPublicKeyV2(v *V2, r Recoverer, d BlockDecoder) ([]Candidate, error) {
	sig, err := decodeSignature("v2", v.Signature2[:])
	if err != nil {
		return nil, err
	}
	plain, err := v.Decompress(d)
	if err != nil {
		return nil, err
	}
	return candidates(RecoverAll(plain, sig, r)), nil
}

// NewV2Header returns a header with the magic and decompressed size followed
// by extra.
func NewV2Header(decompressedSize uint32, extra []byte) []byte {
	h := make([]byte, 0, minV2HeaderSize+len(extra))
	h = append(h, Magic...)
	h = binary.BigEndian.AppendUint32(h, decompressedSize)
	return append(h, extra...)
}
