package envelope

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
)

// FieldSignature is the v1 header field holding the hex signature.
const FieldSignature = "signature"

// Header is a v1 envelope header. Numbers decode as json.Number so that
// unknown fields survive a read/write cycle unchanged.
type Header map[string]any

// Signature returns the hex signature field, if present.
func (h Header) Signature() (string, bool) {
	s, ok := h[FieldSignature].(string)
	return s, ok
}

// clone returns a shallow copy of h.
func (h Header) clone() Header {
	out := make(Header, len(h)+1)
	for k, v := range h {
		out[k] = v
	}
	return out
}

// ReadV1 reads a v1 envelope from path.
//
// Example:
//
//	header, payload, err := envelope.ReadV1("keystone3.bin")
//	if sig, ok := header.Signature(); ok {
//	    fmt.Println("signed:", sig)
//	}
func ReadV1(path string) (Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return DecodeV1(f)
}

// DecodeV1 reads a v1 envelope from any io.Reader. The separator byte after
// the header is skipped without checking its value.
func DecodeV1(r io.Reader) (Header, []byte, error) {
	raw, err := readHeaderBlock("v1", r, 0)
	if err != nil {
		return nil, nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var h Header
	if err := dec.Decode(&h); err != nil {
		return nil, nil, &FormatError{Variant: "v1", Offset: lengthSize, Reason: "header is not valid JSON", Err: err}
	}
	if h == nil {
		return nil, nil, &FormatError{Variant: "v1", Offset: lengthSize, Reason: "header is not a JSON object"}
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return h, payload, nil
}

// EncodeV1 writes a v1 envelope. Header keys are written in sorted order.
func EncodeV1(w io.Writer, h Header, payload []byte) error {
	raw, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode v1 header: %w", err)
	}
	return writeEnvelope(w, payload, raw)
}

// WriteV1 writes a v1 envelope to path, replacing any existing file.
func WriteV1(path string, h Header, payload []byte) error {
	var buf bytes.Buffer
	if err := EncodeV1(&buf, h, payload); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// SignV1 signs payload and returns a copy of h with the signature field set.
// h is not modified.
func SignV1(h Header, payload, privateKey []byte, s Signer) (Header, error) {
	sig, err := sign("v1", s, payload, privateKey)
	if err != nil {
		return nil, err
	}
	out := h.clone()
	out[FieldSignature] = sig
	return out, nil
}

// RecoverPublicKeyV1 returns the public keys recoverable from a v1 signature
// over payload, one per recovery id that succeeds. Several candidates are
// normal; the caller picks the one matching a known key.
func RecoverPublicKeyV1(payload []byte, hexSignature string, r Recoverer) ([]Candidate, error) {
	sig, err := decodeSignature("v1", []byte(hexSignature))
	if err != nil {
		return nil, err
	}
	return candidates(RecoverAll(payload, sig, r)), nil
}
