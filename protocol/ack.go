package protocol

import "encoding/binary"

// AckKind classifies a response acknowledgment.
type AckKind int

const (
	// AckContent is a bare continuation acknowledgment (TagFileContentAck)
	AckContent AckKind = iota + 1

	// AckStatus carries a status code (TagAck); zero means success
	AckStatus
)

func (k AckKind) String() string {
	switch k {
	case AckContent:
		return "content"
	case AckStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Ack is the acknowledgment carried by a response.
type Ack struct {
	Kind AckKind

	// Code is the status code for AckStatus
	Code uint32
}

// OK reports whether the acknowledgment confirms success.
func (a Ack) OK() bool {
	return a.Kind == AckContent || (a.Kind == AckStatus && a.Code == 0)
}

// ParseAck extracts the acknowledgment from a response.
//
// A content ack is accepted as-is; its value is not inspected. A status ack
// must carry exactly AckValueSize bytes.
func ParseAck(f Fields) (Ack, error) {
	if _, ok := f[TagFileContentAck]; ok {
		return Ack{Kind: AckContent}, nil
	}

	v, ok := f[TagAck]
	if !ok {
		return Ack{}, &AckError{Err: ErrAckMissing}
	}
	if len(v) != AckValueSize {
		return Ack{}, &AckError{Length: len(v), Err: ErrAckLength}
	}
	return Ack{Kind: AckStatus, Code: binary.LittleEndian.Uint32(v)}, nil
}

// CheckAck returns nil if the response acknowledges the command, or an
// *AckError describing why it does not.
//
// Example:
//
//	fields, err := sess.Exchange(ctx, protocol.ServiceFileTransfer, protocol.CmdFileTransferInfo, payload)
//	if err != nil {
//	    return err
//	}
//	if err := protocol.CheckAck(fields); err != nil {
//	    return err
//	}
func CheckAck(f Fields) error {
	ack, err := ParseAck(f)
	if err != nil {
		return err
	}
	if !ack.OK() {
		return &AckError{Code: ack.Code, Err: ErrAckRejected}
	}
	return nil
}

// AckFields builds a status ack response payload. Used by simulated devices.
func AckFields(code uint32) []byte {
	v := make([]byte, AckValueSize)
	binary.LittleEndian.PutUint32(v, code)
	out, _ := EncodeTLV(TagAck, v)
	return out
}
