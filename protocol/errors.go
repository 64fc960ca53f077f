package protocol

import (
	"errors"
	"fmt"
)

// Frame and TLV validation failures. Use errors.Is to classify a *ProtocolError.
var (
	ErrInvalidResponse = errors.New("invalid response")
	ErrInvalidLength   = errors.New("invalid length")
	ErrInvalidCRC      = errors.New("invalid crc")
	ErrMalformedTLV    = errors.New("malformed tlv")
	ErrValueTooLarge   = errors.New("value too large")
)

// Ack failures. Use errors.Is to classify an *AckError.
var (
	ErrAckRejected = errors.New("device rejected command")
	ErrAckMissing  = errors.New("response carries no ack tag")
	ErrAckLength   = errors.New("ack value has wrong length")
)

// ProtocolError reports a frame or TLV record that failed structural validation.
// The exchange it belongs to is lost; the channel must be drained or reopened
// before another exchange is attempted.
type ProtocolError struct {
	// Kind is one of the Err* sentinels above
	Kind error

	// Offset is the byte offset in the frame where validation failed
	Offset int

	// Tag is the TLV tag being decoded, if any
	Tag int

	// Expected and Actual describe the mismatched quantity (length, crc, byte)
	Expected uint32
	Actual   uint32
}

func (e *ProtocolError) Error() string {
	switch {
	case errors.Is(e.Kind, ErrInvalidCRC):
		return fmt.Sprintf("protocol: %v: got 0x%08X, expected 0x%08X", e.Kind, e.Actual, e.Expected)
	case errors.Is(e.Kind, ErrMalformedTLV):
		return fmt.Sprintf("protocol: %v: tag 0x%02X at offset %d needs %d bytes, %d available",
			e.Kind, e.Tag, e.Offset, e.Expected, e.Actual)
	case errors.Is(e.Kind, ErrInvalidResponse):
		return fmt.Sprintf("protocol: %v: got 0x%02X at offset %d, expected 0x%02X",
			e.Kind, e.Actual, e.Offset, e.Expected)
	default:
		return fmt.Sprintf("protocol: %v: got %d, expected %d", e.Kind, e.Actual, e.Expected)
	}
}

func (e *ProtocolError) Unwrap() error {
	return e.Kind
}

// IsProtocolError returns true if the error is, or wraps, a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// TransportError wraps a failure of the underlying channel.
type TransportError struct {
	// Op is "read" or "write"
	Op string

	// Offset is the number of frame bytes transferred before the failure
	Offset int

	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed after %d bytes: %v", e.Op, e.Offset, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AckError reports a response that did not acknowledge the command.
// Protocol state is intact; the caller may issue a new exchange.
type AckError struct {
	// Code is the device status code for ErrAckRejected
	Code uint32

	// Length is the actual value length for ErrAckLength
	Length int

	Err error
}

func (e *AckError) Error() string {
	switch {
	case errors.Is(e.Err, ErrAckRejected):
		return fmt.Sprintf("ack: %v (code %d)", e.Err, e.Code)
	case errors.Is(e.Err, ErrAckLength):
		return fmt.Sprintf("ack: %v: got %d bytes, expected %d", e.Err, e.Length, AckValueSize)
	default:
		return fmt.Sprintf("ack: %v", e.Err)
	}
}

func (e *AckError) Unwrap() error {
	return e.Err
}
