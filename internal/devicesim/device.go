// Package devicesim simulates a device that speaks the framed TLV protocol.
// It is used by tests and by the mock_device example.
package devicesim

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"
	"sync"

	"github.com/moffa90/go-fwlink/protocol"
)

// Status codes returned by the simulated device.
const (
	StatusOK          = 0x00
	StatusBadChecksum = 0x02
	StatusBadRequest  = 0x04
	StatusUnknown     = 0x05
)

// Request is one frame received by the device.
type Request struct {
	Header      protocol.Header
	Payload     []byte
	Checksummed bool
}

// Chunk is one content block accepted by the device.
type Chunk struct {
	Offset uint32
	Data   []byte
}

type wireState int

const (
	wireHeader wireState = iota
	wirePayload
	wireChecksum
)

// Device is an in-memory device. It implements io.ReadWriter with the unit
// semantics of a USB bulk endpoint pair: each Write is one unit from the
// host, each Read returns at most one unit of queued response bytes.
type Device struct {
	mu sync.Mutex

	// Info is returned by the device info service
	Info protocol.DeviceInfo

	// ContentAck answers content blocks with a bare content ack instead of a status ack
	ContentAck bool

	// AckCode returns the status for a content block at offset (nil = always StatusOK)
	AckCode func(offset uint32) uint32

	// InfoAckCode is the status returned for file info requests
	InfoAckCode uint32

	// ReadErr and WriteErr, when set, fail every Read or Write
	ReadErr  error
	WriteErr error

	unit     int
	state    wireState
	header   protocol.Header
	rawHdr   []byte
	payload  []byte
	out      bytes.Buffer
	requests []Request
	infos    []protocol.Fields
	chunks   []Chunk
	raw      [][]byte
	complete int
	badCRC   int
}

// New returns a device identifying itself with the given model and firmware version.
func New(model, firmwareVersion string) *Device {
	return &Device{
		Info: protocol.DeviceInfo{
			Model:           model,
			SerialNumber:    "SIM0000001",
			HardwareVersion: "V3.0",
			FirmwareVersion: firmwareVersion,
		},
		unit: protocol.UnitSize,
	}
}

// Write consumes one unit of request bytes.
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.WriteErr != nil {
		return 0, d.WriteErr
	}

	if d.state == wireChecksum {
		if len(p) == protocol.ChecksumSize {
			d.finish(p)
			return len(p), nil
		}
		// No checksum follows: the frame ended with its payload.
		d.finish(nil)
	}

	d.consume(p)
	return len(p), nil
}

func (d *Device) consume(p []byte) {
	for len(p) > 0 {
		switch d.state {
		case wireHeader:
			need := protocol.HeaderSize - len(d.rawHdr)
			if need > len(p) {
				need = len(p)
			}
			d.rawHdr = append(d.rawHdr, p[:need]...)
			p = p[need:]
			if len(d.rawHdr) == protocol.HeaderSize {
				d.header, _ = protocol.DecodeHeader(d.rawHdr)
				d.payload = make([]byte, 0, d.header.PayloadLength)
				d.state = wirePayload
				if d.header.PayloadLength == 0 {
					d.state = wireChecksum
				}
			}
		case wirePayload:
			need := int(d.header.PayloadLength) - len(d.payload)
			if need > len(p) {
				need = len(p)
			}
			d.payload = append(d.payload, p[:need]...)
			p = p[need:]
			if len(d.payload) == int(d.header.PayloadLength) {
				d.state = wireChecksum
			}
		case wireChecksum:
			// Extra bytes after a complete payload start the next frame.
			d.finish(nil)
		}
	}
}

// finish dispatches the frame currently held and resets the wire state.
func (d *Device) finish(checksum []byte) {
	req := Request{
		Header:      d.header,
		Payload:     d.payload,
		Checksummed: checksum != nil,
	}
	header := d.rawHdr
	d.state = wireHeader
	d.rawHdr = nil
	d.payload = nil

	d.requests = append(d.requests, req)

	if req.Checksummed {
		if binary.LittleEndian.Uint32(checksum) != protocol.CalculateFrameChecksum(header, req.Payload) {
			d.badCRC++
			d.respond(req.Header, protocol.AckFields(StatusBadChecksum))
			return
		}
	}

	d.handle(req)
}

func (d *Device) handle(req Request) {
	h := req.Header
	switch {
	case h.ServiceID == protocol.ServiceDeviceInfo && h.CommandID == protocol.CmdDeviceInfoBasic:
		var payload []byte
		payload, _ = protocol.AppendTLV(payload, protocol.TagDeviceModel, cString(d.Info.Model))
		payload, _ = protocol.AppendTLV(payload, protocol.TagDeviceSerialNumber, cString(d.Info.SerialNumber))
		payload, _ = protocol.AppendTLV(payload, protocol.TagDeviceHardwareVersion, cString(d.Info.HardwareVersion))
		payload, _ = protocol.AppendTLV(payload, protocol.TagDeviceFirmwareVersion, cString(d.Info.FirmwareVersion))
		d.respond(h, payload)

	case h.ServiceID == protocol.ServiceFileTransfer && h.CommandID == protocol.CmdFileTransferInfo:
		fields, err := protocol.DecodeTLV(req.Payload, 0, len(req.Payload))
		if err != nil {
			d.respond(h, protocol.AckFields(StatusBadRequest))
			return
		}
		d.infos = append(d.infos, fields)
		d.respond(h, protocol.AckFields(d.InfoAckCode))

	case h.ServiceID == protocol.ServiceFileTransfer && h.CommandID == protocol.CmdFileTransferContent:
		if !req.Checksummed {
			// Raw content frames are consumed without an answer.
			d.raw = append(d.raw, req.Payload)
			return
		}
		d.handleContent(h, req.Payload)

	case h.ServiceID == protocol.ServiceFileTransfer && h.CommandID == protocol.CmdFileTransferComplete:
		d.complete++
		d.respond(h, protocol.AckFields(StatusOK))

	default:
		d.respond(h, protocol.AckFields(StatusUnknown))
	}
}

func (d *Device) handleContent(h protocol.Header, payload []byte) {
	fields, err := protocol.DecodeTLV(payload, 0, len(payload))
	if err != nil {
		d.respond(h, protocol.AckFields(StatusBadRequest))
		return
	}
	offset, ok := fields.Uint32(protocol.TagFileOffset)
	data, hasData := fields[protocol.TagFileData]
	if !ok || !hasData {
		d.respond(h, protocol.AckFields(StatusBadRequest))
		return
	}

	var code uint32
	if d.AckCode != nil {
		code = d.AckCode(offset)
	}
	if code != StatusOK {
		d.respond(h, protocol.AckFields(code))
		return
	}

	d.chunks = append(d.chunks, Chunk{Offset: offset, Data: data})
	if d.ContentAck {
		ack, _ := protocol.EncodeTLV(protocol.TagFileContentAck, nil)
		d.respond(h, ack)
		return
	}
	d.respond(h, protocol.AckFields(StatusOK))
}

func (d *Device) respond(req protocol.Header, payload []byte) {
	h := protocol.BuildHeader(req.ServiceID, req.CommandID, 0)
	frame, err := protocol.EncodeFrame(h, payload)
	if err != nil {
		return
	}
	d.out.Write(frame)
}

// Read returns up to one unit of queued response bytes. It returns io.EOF
// when no response is pending.
func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ReadErr != nil {
		return 0, d.ReadErr
	}
	if d.out.Len() == 0 {
		return 0, io.EOF
	}
	if len(p) > d.unit {
		p = p[:d.unit]
	}
	return d.out.Read(p)
}

// Flush dispatches a frame whose payload is complete but whose checksum
// never arrived. A frame sent without checksum is otherwise only dispatched
// when the next frame starts.
func (d *Device) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == wireChecksum {
		d.finish(nil)
	}
}

// Requests returns every frame received so far.
func (d *Device) Requests() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Request(nil), d.requests...)
}

// FileInfos returns the decoded file info requests.
func (d *Device) FileInfos() []protocol.Fields {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]protocol.Fields(nil), d.infos...)
}

// Chunks returns the accepted content blocks in arrival order.
func (d *Device) Chunks() []Chunk {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Chunk(nil), d.chunks...)
}

// RawContent returns content frames received without checksum.
func (d *Device) RawContent() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.raw...)
}

// Completed returns the number of transfer-complete commands received.
func (d *Device) Completed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.complete
}

// BadChecksums returns the number of frames rejected for a CRC mismatch.
func (d *Device) BadChecksums() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.badCRC
}

// Assemble joins the accepted chunks in ascending offset order.
func (d *Device) Assemble() []byte {
	chunks := d.Chunks()
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Offset < chunks[j].Offset })
	var out []byte
	for _, c := range chunks {
		out = append(out, c.Data...)
	}
	return out
}

func cString(s string) []byte {
	return append([]byte(s), 0x00)
}
