package protocol

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// maxEmptyReads bounds consecutive zero-byte reads before a read is
// reported as making no progress.
const maxEmptyReads = 100

// HeaderOption overrides a default header field.
type HeaderOption func(*Header)

// WithIndex sets the frame index.
func WithIndex(index uint16) HeaderOption {
	return func(h *Header) { h.Index = index }
}

// WithFlag sets the header flag word.
func WithFlag(flag uint16) HeaderOption {
	return func(h *Header) { h.Flag = flag }
}

// WithVersion sets the protocol version byte.
func WithVersion(version byte) HeaderOption {
	return func(h *Header) { h.Version = version }
}

// WithProtocolID sets the protocol id byte.
func WithProtocolID(id byte) HeaderOption {
	return func(h *Header) { h.ProtocolID = id }
}

// BuildHeader returns a request header with index 0, flag 1, version 0
// and protocol id 0x6b unless overridden.
//
// Example:
//
//	h := protocol.BuildHeader(protocol.ServiceFileTransfer, protocol.CmdFileTransferInfo, uint16(len(payload)))
func BuildHeader(serviceID, commandID byte, payloadLength uint16, opts ...HeaderOption) Header {
	h := Header{
		ProtocolID:    ProtocolID,
		Version:       DefaultVersion,
		Index:         DefaultIndex,
		ServiceID:     serviceID,
		CommandID:     commandID,
		Flag:          DefaultFlag,
		PayloadLength: payloadLength,
	}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// Encode serializes the header.
//
// Header structure:
//
//	[PROTO][VER][INDEX_L][INDEX_H][SERVICE][COMMAND][FLAG_H][FLAG_L][LEN_L][LEN_H]
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	buf[offsetProtocol] = h.ProtocolID
	buf[offsetVersion] = h.Version
	binary.LittleEndian.PutUint16(buf[offsetIndex:], h.Index)
	buf[offsetService] = h.ServiceID
	buf[offsetCommand] = h.CommandID
	binary.BigEndian.PutUint16(buf[offsetFlag:], h.Flag)
	binary.LittleEndian.PutUint16(buf[offsetLength:], h.PayloadLength)
	return buf
}

// DecodeHeader parses the first HeaderSize bytes of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, &ProtocolError{Kind: ErrInvalidLength, Expected: HeaderSize, Actual: uint32(len(b))}
	}
	return Header{
		ProtocolID:    b[offsetProtocol],
		Version:       b[offsetVersion],
		Index:         binary.LittleEndian.Uint16(b[offsetIndex:]),
		ServiceID:     b[offsetService],
		CommandID:     b[offsetCommand],
		Flag:          binary.BigEndian.Uint16(b[offsetFlag:]),
		PayloadLength: binary.LittleEndian.Uint16(b[offsetLength:]),
	}, nil
}

// WriteFrame writes one frame to w: the header, then the payload in writes of
// at most unit bytes, then (if includeChecksum) the CRC32 of header and payload
// as its own write. Padding to the unit size, if the channel needs it, is the
// channel's job.
//
// The context is checked between writes; a write already issued is never interrupted.
func WriteFrame(ctx context.Context, w io.Writer, h Header, payload []byte, includeChecksum bool, unit int) error {
	if unit <= 0 {
		unit = UnitSize
	}
	if len(payload) > MaxPayloadSize || int(h.PayloadLength) != len(payload) {
		return &ProtocolError{Kind: ErrInvalidLength, Offset: offsetLength, Expected: uint32(h.PayloadLength), Actual: uint32(len(payload))}
	}

	header := h.Encode()
	fw := &frameWriter{w: w, unit: unit}
	if err := fw.write(ctx, header); err != nil {
		return err
	}
	if err := fw.write(ctx, payload); err != nil {
		return err
	}
	if !includeChecksum {
		return nil
	}

	checksum := make([]byte, ChecksumSize)
	binary.LittleEndian.PutUint32(checksum, CalculateFrameChecksum(header, payload))
	return fw.write(ctx, checksum)
}

// frameWriter splits writes into unit-sized pieces and tracks the byte count
// for error reporting.
type frameWriter struct {
	w       io.Writer
	unit    int
	written int
}

func (fw *frameWriter) write(ctx context.Context, b []byte) error {
	for len(b) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := b
		if len(chunk) > fw.unit {
			chunk = chunk[:fw.unit]
		}
		n, err := fw.w.Write(chunk)
		fw.written += n
		if err == nil && n < len(chunk) {
			err = io.ErrShortWrite
		}
		if err != nil {
			return &TransportError{Op: "write", Offset: fw.written, Err: err}
		}
		b = b[len(chunk):]
	}
	return nil
}

// readState is the state of a frame being assembled from transport units.
type readState int

const (
	stateAwaitingHeader readState = iota
	stateAccumulatingPayload
	stateComplete
	stateFailed
)

func (s readState) String() string {
	switch s {
	case stateAwaitingHeader:
		return "awaiting header"
	case stateAccumulatingPayload:
		return "accumulating payload"
	case stateComplete:
		return "complete"
	case stateFailed:
		return "failed"
	default:
		return fmt.Sprintf("readState(%d)", int(s))
	}
}

// frameAssembler accumulates transport units into one frame.
// Every received byte counts toward the frame length, header included.
type frameAssembler struct {
	state readState
	buf   []byte
	total int
	err   error
}

// feed consumes one unit and advances the state machine.
func (a *frameAssembler) feed(unit []byte) {
	switch a.state {
	case stateAwaitingHeader:
		if len(unit) == 0 || unit[0] != ProtocolID {
			var got uint32
			if len(unit) > 0 {
				got = uint32(unit[0])
			}
			a.fail(&ProtocolError{Kind: ErrInvalidResponse, Offset: offsetProtocol, Expected: ProtocolID, Actual: got})
			return
		}
		if len(unit) < HeaderSize {
			a.fail(&ProtocolError{Kind: ErrInvalidLength, Offset: 0, Expected: HeaderSize, Actual: uint32(len(unit))})
			return
		}
		declared := int(binary.LittleEndian.Uint16(unit[offsetLength:]))
		a.total = HeaderSize + declared + ChecksumSize
		a.buf = make([]byte, 0, a.total)
		a.state = stateAccumulatingPayload
		a.append(unit)

	case stateAccumulatingPayload:
		a.append(unit)
	}
}

func (a *frameAssembler) append(unit []byte) {
	a.buf = append(a.buf, unit...)
	if len(a.buf) >= a.total {
		// Bytes past the frame end are unit padding.
		a.buf = a.buf[:a.total]
		a.state = stateComplete
	}
}

func (a *frameAssembler) fail(err error) {
	a.state = stateFailed
	a.err = err
}

// ReadFrame reads transport units from r until one full frame is assembled,
// then verifies the CRC and decodes the TLV payload.
//
// Each Read call is expected to return at most one unit. The context is
// checked between reads; a read already issued is never interrupted.
func ReadFrame(ctx context.Context, r io.Reader, unit int) (*Frame, error) {
	if unit <= 0 {
		unit = UnitSize
	}

	a := &frameAssembler{}
	buf := make([]byte, unit)
	empty := 0
	for a.state != stateComplete {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := r.Read(buf)
		if n > 0 {
			empty = 0
			a.feed(buf[:n])
			if a.state == stateFailed {
				return nil, a.err
			}
			if a.state == stateComplete {
				break
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, &TransportError{Op: "read", Offset: len(a.buf), Err: err}
		}
		if n == 0 {
			empty++
			if empty >= maxEmptyReads {
				return nil, &TransportError{Op: "read", Offset: len(a.buf), Err: io.ErrNoProgress}
			}
		}
	}

	return decodeFrame(a.buf)
}

// decodeFrame validates and decodes a complete frame.
func decodeFrame(frame []byte) (*Frame, error) {
	if err := verifyFrameChecksum(frame); err != nil {
		return nil, err
	}

	h, err := DecodeHeader(frame)
	if err != nil {
		return nil, err
	}

	end := len(frame) - ChecksumSize
	fields, err := DecodeTLV(frame, HeaderSize, end)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, end-HeaderSize)
	copy(payload, frame[HeaderSize:end])

	return &Frame{
		Header:   h,
		Payload:  payload,
		Checksum: binary.LittleEndian.Uint32(frame[end:]),
		Fields:   fields,
	}, nil
}

// EncodeFrame returns the complete wire form of a frame with its checksum.
// Used to build device responses.
func EncodeFrame(h Header, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, &ProtocolError{Kind: ErrInvalidLength, Offset: offsetLength, Expected: MaxPayloadSize, Actual: uint32(len(payload))}
	}
	h.PayloadLength = uint16(len(payload))
	header := h.Encode()

	out := make([]byte, 0, HeaderSize+len(payload)+ChecksumSize)
	out = append(out, header...)
	out = append(out, payload...)
	return binary.LittleEndian.AppendUint32(out, CalculateFrameChecksum(header, payload)), nil
}
