// Package protocol implements the framed TLV protocol spoken over the device's
// USB bulk endpoints.
//
// # Frame Structure
//
// Every message is one frame:
//
//	[PROTO][VER][INDEX(2, LE)][SERVICE][COMMAND][FLAG(2, BE)][LEN(2, LE)][TLV PAYLOAD...][CRC32(4, LE)]
//
// Where:
//   - PROTO = protocol id (0x6b)
//   - LEN = payload length in bytes
//   - CRC32 = IEEE CRC32 over header and payload
//
// Frames travel in primitive units of UnitSize (64) bytes. WriteFrame issues the
// header, each payload unit and the checksum as separate writes; ReadFrame reads
// units until the declared frame length has arrived.
//
// # TLV Payload
//
// The payload is a sequence of records:
//
//	[TAG][LEN][VALUE...]                 LEN <= 0x7F
//	[TAG][0x80|LEN_H][LEN_L][VALUE...]   LEN <= 0x7FFF
//
// DecodeTLV returns the records as Fields, a tag-to-value map.
//
// # Acknowledgments
//
// File transfer responses carry either a bare content ack (TagFileContentAck) or
// a status ack (TagAck) with a 4-byte little-endian code where zero is success.
// Use CheckAck to turn a response into an error:
//
//	if err := protocol.CheckAck(frame.Fields); err != nil {
//	    var ackErr *protocol.AckError
//	    if errors.As(err, &ackErr) {
//	        log.Printf("device returned code %d", ackErr.Code)
//	    }
//	}
//
// # Error Handling
//
// Structural failures are *ProtocolError values wrapping ErrInvalidResponse,
// ErrInvalidLength, ErrInvalidCRC or ErrMalformedTLV. Channel failures are
// *TransportError. Neither is retried by this package.
package protocol
