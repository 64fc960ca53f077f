package protocol

import (
	"bytes"
	"encoding/binary"
)

// Fields is a decoded TLV set keyed by tag. When a tag repeats on the wire the
// last record wins.
type Fields map[byte][]byte

// Uint32 returns the little-endian value stored under tag.
func (f Fields) Uint32(tag byte) (uint32, bool) {
	v, ok := f[tag]
	if !ok || len(v) != 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(v), true
}

// String returns the value stored under tag with any trailing NUL bytes removed.
// Device strings are sent NUL-terminated.
func (f Fields) String(tag byte) (string, bool) {
	v, ok := f[tag]
	if !ok {
		return "", false
	}
	return string(bytes.TrimRight(v, "\x00")), true
}

// EncodeTLV encodes a single record.
//
// Record format:
//
//	[TAG][LEN][VALUE...]           len <= 0x7F
//	[TAG][0x80|LEN_H][LEN_L][VALUE...]  len <= 0x7FFF
func EncodeTLV(tag byte, value []byte) ([]byte, error) {
	return AppendTLV(make([]byte, 0, 3+len(value)), tag, value)
}

// AppendTLV appends an encoded record to dst.
func AppendTLV(dst []byte, tag byte, value []byte) ([]byte, error) {
	n := len(value)
	if n > MaxValueLength {
		return dst, &ProtocolError{
			Kind:     ErrValueTooLarge,
			Tag:      int(tag),
			Expected: MaxValueLength,
			Actual:   uint32(n),
		}
	}

	dst = append(dst, tag)
	if n > MaxShortLength {
		dst = append(dst, longLengthFlag|byte(n>>8), byte(n))
	} else {
		dst = append(dst, byte(n))
	}
	return append(dst, value...), nil
}

// DecodeTLV scans records in b[start:end] and returns them keyed by tag.
// Values are copied out of b.
func DecodeTLV(b []byte, start, end int) (Fields, error) {
	if start < 0 || end > len(b) || start > end {
		return nil, &ProtocolError{Kind: ErrMalformedTLV, Offset: start, Expected: uint32(end), Actual: uint32(len(b))}
	}

	fields := make(Fields)
	i := start
	for i < end {
		tag := b[i]
		i++

		if i >= end {
			return nil, &ProtocolError{Kind: ErrMalformedTLV, Offset: i, Tag: int(tag), Expected: 1, Actual: 0}
		}
		length := int(b[i])
		i++
		if length > MaxShortLength {
			if i >= end {
				return nil, &ProtocolError{Kind: ErrMalformedTLV, Offset: i, Tag: int(tag), Expected: 1, Actual: 0}
			}
			length = (length&^longLengthFlag)<<8 | int(b[i])
			i++
		}

		if end-i < length {
			return nil, &ProtocolError{
				Kind:     ErrMalformedTLV,
				Offset:   i,
				Tag:      int(tag),
				Expected: uint32(length),
				Actual:   uint32(end - i),
			}
		}

		value := make([]byte, length)
		copy(value, b[i:i+length])
		fields[tag] = value
		i += length
	}

	return fields, nil
}
