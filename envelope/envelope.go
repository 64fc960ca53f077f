package envelope

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
)

const (
	// SignatureSize is the size of a compact signature
	SignatureSize = 64

	// SignatureHexSize is the size of a hex encoded signature
	SignatureHexSize = 2 * SignatureSize

	// MaxRecoveryID is the largest public key recovery id tried
	MaxRecoveryID = 3

	// MaxHeaderSize bounds the header length accepted when decoding
	MaxHeaderSize = 16 << 20

	lengthSize = 4
	separator  = 0x00
)

// Signer produces a compact signature of msg with a raw private key.
type Signer interface {
	Sign(msg, privateKey []byte) ([]byte, error)
}

// Recoverer derives the uncompressed public key that produced sig over msg,
// given a recovery id.
type Recoverer interface {
	Recover(msg, sig []byte, recoveryID int) ([]byte, error)
}

// BlockDecoder walks a stream of independently sized compressed blocks.
type BlockDecoder interface {
	// NextBlockSize returns the encoded size of the block at the start of b
	NextBlockSize(b []byte) (int, error)

	// DecodeBlock decodes exactly one encoded block
	DecodeBlock(b []byte) ([]byte, error)
}

// Candidate is a public key recovered from a signature.
type Candidate struct {
	RecoveryID   int
	PublicKeyHex string
}

// Attempt is the outcome of one recovery id.
type Attempt struct {
	RecoveryID int
	PublicKey  []byte
	Err        error
}

// RecoverAll tries every recovery id in order and returns one Attempt per id.
// Failed attempts are expected for wrong ids and are reported, not returned as errors.
func RecoverAll(msg, sig []byte, r Recoverer) []Attempt {
	attempts := make([]Attempt, 0, MaxRecoveryID+1)
	for id := 0; id <= MaxRecoveryID; id++ {
		pub, err := r.Recover(msg, sig, id)
		attempts = append(attempts, Attempt{RecoveryID: id, PublicKey: pub, Err: err})
	}
	return attempts
}

// candidates keeps the successful attempts.
func candidates(attempts []Attempt) []Candidate {
	var out []Candidate
	for _, a := range attempts {
		if a.Err != nil {
			continue
		}
		out = append(out, Candidate{RecoveryID: a.RecoveryID, PublicKeyHex: hex.EncodeToString(a.PublicKey)})
	}
	return out
}

// decodeSignature decodes a hex signature of SignatureSize bytes.
func decodeSignature(variant string, s []byte) ([]byte, error) {
	sig := make([]byte, hex.DecodedLen(len(s)))
	if _, err := hex.Decode(sig, s); err != nil {
		return nil, &FormatError{Variant: variant, Reason: "signature is not hexadecimal", Err: err}
	}
	if len(sig) != SignatureSize {
		return nil, &FormatError{Variant: variant, Reason: fmt.Sprintf("signature is %d bytes, expected %d", len(sig), SignatureSize)}
	}
	return sig, nil
}

// sign signs msg and returns the hex signature.
func sign(variant string, s Signer, msg, key []byte) (string, error) {
	if s == nil {
		return "", fmt.Errorf("envelope %s: signer cannot be nil", variant)
	}
	sig, err := s.Sign(msg, key)
	if err != nil {
		return "", fmt.Errorf("envelope %s: sign: %w", variant, err)
	}
	if len(sig) != SignatureSize {
		return "", fmt.Errorf("envelope %s: signer returned %d bytes, expected %d", variant, len(sig), SignatureSize)
	}
	return hex.EncodeToString(sig), nil
}

// readHeaderBlock reads the length prefix, the header bytes and the separator.
func readHeaderBlock(variant string, r io.Reader, minSize int) ([]byte, error) {
	var lenBuf [lengthSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, &FormatError{Variant: variant, Offset: 0, Reason: "missing header length", Err: err}
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if int64(n) < int64(minSize) || n > MaxHeaderSize {
		return nil, &FormatError{Variant: variant, Offset: 0, Reason: fmt.Sprintf("header length %d outside %d..%d", n, minSize, MaxHeaderSize)}
	}

	block := make([]byte, n)
	if read, err := io.ReadFull(r, block); err != nil {
		return nil, &FormatError{Variant: variant, Offset: int64(lengthSize + read), Reason: fmt.Sprintf("header truncated, expected %d bytes", n), Err: err}
	}

	var sep [1]byte
	if _, err := io.ReadFull(r, sep[:]); err != nil {
		return nil, &FormatError{Variant: variant, Offset: int64(lengthSize) + int64(n), Reason: "missing separator", Err: err}
	}
	return block, nil
}

// writeEnvelope writes the length prefix, the header parts, the separator
// and the payload.
func writeEnvelope(w io.Writer, payload []byte, header ...[]byte) error {
	total := 0
	for _, h := range header {
		total += len(h)
	}
	if total > MaxHeaderSize {
		return fmt.Errorf("header of %d bytes exceeds %d", total, MaxHeaderSize)
	}

	buf := make([]byte, 0, lengthSize+total+1)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(total))
	for _, h := range header {
		buf = append(buf, h...)
	}
	buf = append(buf, separator)

	if _, err := w.Write(buf); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
