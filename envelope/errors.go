package envelope

import (
	"errors"
	"fmt"
)

// ErrTruncatedStream is returned when a compressed payload ends before the
// declared decompressed size is reached.
var ErrTruncatedStream = errors.New("compressed stream truncated")

// FormatError reports a malformed envelope.
type FormatError struct {
	// Variant is "v1" or "v2"
	Variant string

	// Offset is the byte offset where the problem was found
	Offset int64

	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("envelope %s: %s at offset %d: %v", e.Variant, e.Reason, e.Offset, e.Err)
	}
	return fmt.Sprintf("envelope %s: %s at offset %d", e.Variant, e.Reason, e.Offset)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
