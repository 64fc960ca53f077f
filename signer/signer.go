package signer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

const (
	// PrivateKeySize is the size of a raw private key
	PrivateKeySize = 32

	// PublicKeySize is the size of an uncompressed public key
	PublicKeySize = 65

	// SignatureSize is the size of a compact signature (r || s)
	SignatureSize = 64

	// MaxRecoveryID is the largest recovery id; valid ids are 0..MaxRecoveryID
	MaxRecoveryID = 3

	// compactMagic is the recovery byte offset of a 65-byte compact signature
	// for an uncompressed public key.
	compactMagic = 27
)

// ParsePrivateKey decodes a hex private key (an optional 0x prefix is
// accepted). The key must be 32 bytes and a valid scalar for the curve.
func ParsePrivateKey(s string) ([]byte, error) {
	b, err := decodeHex(s)
	if err != nil {
		return nil, &KeyFormatError{Kind: "private", Reason: "not hexadecimal", Err: err}
	}
	if err := checkPrivateKey(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ParsePublicKey decodes a hex uncompressed public key (0x04 || X || Y) and
// checks that the point is on the curve.
func ParsePublicKey(s string) ([]byte, error) {
	b, err := decodeHex(s)
	if err != nil {
		return nil, &KeyFormatError{Kind: "public", Reason: "not hexadecimal", Err: err}
	}
	if len(b) != PublicKeySize {
		return nil, &KeyFormatError{Kind: "public", Length: len(b), Reason: fmt.Sprintf("expected %d bytes", PublicKeySize)}
	}
	if b[0] != 0x04 {
		return nil, &KeyFormatError{Kind: "public", Length: len(b), Reason: fmt.Sprintf("prefix 0x%02X, expected 0x04", b[0])}
	}
	if _, err := secp256k1.ParsePubKey(b); err != nil {
		return nil, &KeyFormatError{Kind: "public", Length: len(b), Reason: "not on curve", Err: err}
	}
	return b, nil
}

// PublicKeyHex returns the uncompressed public key of a private key, hex encoded.
func PublicKeyHex(privateKey []byte) (string, error) {
	if err := checkPrivateKey(privateKey); err != nil {
		return "", err
	}
	priv := secp256k1.PrivKeyFromBytes(privateKey)
	return hex.EncodeToString(priv.PubKey().SerializeUncompressed()), nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}

func checkPrivateKey(b []byte) error {
	if len(b) != PrivateKeySize {
		return &KeyFormatError{Kind: "private", Length: len(b), Reason: fmt.Sprintf("expected %d bytes", PrivateKeySize)}
	}
	var k secp256k1.ModNScalar
	if overflow := k.SetByteSlice(b); overflow || k.IsZero() {
		return &KeyFormatError{Kind: "private", Length: len(b), Reason: "outside curve order"}
	}
	return nil
}

// Secp256k1 signs with raw 32-byte private keys and recovers uncompressed
// public keys. The zero value is ready to use.
type Secp256k1 struct{}

// Sign returns the 64-byte compact signature of SHA-256(msg).
func (Secp256k1) Sign(msg, privateKey []byte) ([]byte, error) {
	if err := checkPrivateKey(privateKey); err != nil {
		return nil, err
	}
	priv := secp256k1.PrivKeyFromBytes(privateKey)
	defer priv.Zero()

	digest := sha256.Sum256(msg)
	compact := ecdsa.SignCompact(priv, digest[:], false)
	return compact[1:], nil
}

// Recover returns the uncompressed public key that produced sig over msg,
// assuming recoveryID. A wrong recovery id yields either an error or a
// different key.
func (Secp256k1) Recover(msg, sig []byte, recoveryID int) ([]byte, error) {
	if len(sig) != SignatureSize {
		return nil, fmt.Errorf("signature is %d bytes, expected %d", len(sig), SignatureSize)
	}
	if recoveryID < 0 || recoveryID > MaxRecoveryID {
		return nil, fmt.Errorf("recovery id %d outside 0..%d", recoveryID, MaxRecoveryID)
	}

	compact := make([]byte, 1+SignatureSize)
	compact[0] = compactMagic + byte(recoveryID)
	copy(compact[1:], sig)

	digest := sha256.Sum256(msg)
	pub, _, err := ecdsa.RecoverCompact(compact, digest[:])
	if err != nil {
		return nil, err
	}
	return pub.SerializeUncompressed(), nil
}
