package signer

import "fmt"

// KeyFormatError reports a key that cannot be used: wrong length, not
// hexadecimal, or outside the curve.
type KeyFormatError struct {
	// Kind is "private" or "public"
	Kind string

	// Length is the decoded key length in bytes (0 if the key is not hex)
	Length int

	Reason string
	Err    error
}

func (e *KeyFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s key: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s key: %s", e.Kind, e.Reason)
}

func (e *KeyFormatError) Unwrap() error {
	return e.Err
}
