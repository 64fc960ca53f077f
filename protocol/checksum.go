package protocol

import (
	"encoding/binary"
	"hash/crc32"
)

// CalculateFrameChecksum computes the CRC32 (IEEE) trailing every frame.
// The checksum covers the header and the payload.
func CalculateFrameChecksum(header, payload []byte) uint32 {
	crc := crc32.Update(0, crc32.IEEETable, header)
	return crc32.Update(crc, crc32.IEEETable, payload)
}

// verifyFrameChecksum checks the last ChecksumSize bytes of frame against
// the CRC32 of everything before them.
func verifyFrameChecksum(frame []byte) error {
	body := frame[:len(frame)-ChecksumSize]
	expected := binary.LittleEndian.Uint32(frame[len(frame)-ChecksumSize:])
	actual := crc32.ChecksumIEEE(body)
	if expected != actual {
		return &ProtocolError{
			Kind:     ErrInvalidCRC,
			Offset:   len(body),
			Expected: expected,
			Actual:   actual,
		}
	}
	return nil
}
