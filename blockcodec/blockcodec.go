// Package blockcodec encodes a byte stream as a sequence of independently
// sized compressed blocks, the payload layout of v2 firmware envelopes.
//
// Each block starts with a header that states its own total size:
//
//	short: [FLAGS][TOTAL(1)][SIZE(1)][BODY...]
//	long:  [FLAGS][TOTAL(4, LE)][SIZE(4, LE)][BODY...]
//
// TOTAL counts the header and body, SIZE is the decoded length. FLAGS bit 0
// marks an LZ4 compressed body (otherwise the body is stored as is) and bit 1
// selects the long header.
package blockcodec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

const (
	flagCompressed = 0x01
	flagLongHeader = 0x02

	shortHeaderSize = 3
	longHeaderSize  = 9

	// DefaultBlockSize is the decoded size of each block produced by Compress
	DefaultBlockSize = 64 * 1024

	// MaxBlockSize is the largest decoded block size accepted by Compress
	MaxBlockSize = 16 * 1024 * 1024
)

// ErrInvalidBlock is returned for block headers or bodies that cannot be decoded.
var ErrInvalidBlock = errors.New("invalid block")

// Compress splits data into blocks of at most blockSize bytes and encodes
// each one. Blocks that do not shrink under LZ4 are stored.
func Compress(data []byte, blockSize int) ([]byte, error) {
	if blockSize <= 0 || blockSize > MaxBlockSize {
		return nil, fmt.Errorf("block size %d outside 1..%d", blockSize, MaxBlockSize)
	}

	var c lz4.Compressor
	scratch := make([]byte, lz4.CompressBlockBound(blockSize))
	out := make([]byte, 0, len(data)/2+longHeaderSize)
	for off := 0; off < len(data); off += blockSize {
		end := off + blockSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]

		n, err := c.CompressBlock(chunk, scratch)
		if err != nil {
			return nil, fmt.Errorf("compress block at %d: %w", off, err)
		}
		if n > 0 && n < len(chunk) {
			out = appendBlock(out, flagCompressed, scratch[:n], len(chunk))
		} else {
			out = appendBlock(out, 0, chunk, len(chunk))
		}
	}
	return out, nil
}

func appendBlock(dst []byte, flags byte, body []byte, size int) []byte {
	total := shortHeaderSize + len(body)
	if total <= 0xFF && size <= 0xFF {
		dst = append(dst, flags, byte(total), byte(size))
		return append(dst, body...)
	}
	total = longHeaderSize + len(body)
	dst = append(dst, flags|flagLongHeader)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(total))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(size))
	return append(dst, body...)
}

// blockHeader is a decoded block header.
type blockHeader struct {
	flags   byte
	hdrSize int
	total   int
	size    int
}

func parseHeader(b []byte) (blockHeader, error) {
	if len(b) == 0 {
		return blockHeader{}, fmt.Errorf("%w: empty input", ErrInvalidBlock)
	}
	h := blockHeader{flags: b[0], hdrSize: shortHeaderSize}
	if h.flags&flagLongHeader != 0 {
		h.hdrSize = longHeaderSize
	}
	if len(b) < h.hdrSize {
		return blockHeader{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrInvalidBlock, h.hdrSize, len(b))
	}
	if h.hdrSize == longHeaderSize {
		h.total = int(binary.LittleEndian.Uint32(b[1:5]))
		h.size = int(binary.LittleEndian.Uint32(b[5:9]))
	} else {
		h.total = int(b[1])
		h.size = int(b[2])
	}
	if h.total < h.hdrSize {
		return blockHeader{}, fmt.Errorf("%w: total size %d smaller than header", ErrInvalidBlock, h.total)
	}
	if h.size > MaxBlockSize {
		return blockHeader{}, fmt.Errorf("%w: decoded size %d exceeds %d", ErrInvalidBlock, h.size, MaxBlockSize)
	}
	return h, nil
}

// Decoder decodes blocks produced by Compress. The zero value is ready to use;
// blocks carry no state between them.
type Decoder struct{}

// NextBlockSize returns the encoded size of the block at the start of b.
func (Decoder) NextBlockSize(b []byte) (int, error) {
	h, err := parseHeader(b)
	if err != nil {
		return 0, err
	}
	return h.total, nil
}

// DecodeBlock decodes exactly one block.
func (Decoder) DecodeBlock(b []byte) ([]byte, error) {
	h, err := parseHeader(b)
	if err != nil {
		return nil, err
	}
	if h.total != len(b) {
		return nil, fmt.Errorf("%w: block declares %d bytes, got %d", ErrInvalidBlock, h.total, len(b))
	}
	body := b[h.hdrSize:]

	if h.flags&flagCompressed == 0 {
		if len(body) != h.size {
			return nil, fmt.Errorf("%w: stored block of %d bytes declares %d", ErrInvalidBlock, len(body), h.size)
		}
		return append([]byte(nil), body...), nil
	}

	out := make([]byte, h.size)
	n, err := lz4.UncompressBlock(body, out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	if n != h.size {
		return nil, fmt.Errorf("%w: decoded %d bytes, declared %d", ErrInvalidBlock, n, h.size)
	}
	return out, nil
}

// Decompress decodes every block in b.
func Decompress(b []byte) ([]byte, error) {
	var d Decoder
	var out []byte
	for off := 0; off < len(b); {
		n, err := d.NextBlockSize(b[off:])
		if err != nil {
			return nil, fmt.Errorf("block at %d: %w", off, err)
		}
		if off+n > len(b) {
			return nil, fmt.Errorf("block at %d: %w: declares %d bytes, %d remain", off, ErrInvalidBlock, n, len(b)-off)
		}
		block, err := d.DecodeBlock(b[off : off+n])
		if err != nil {
			return nil, fmt.Errorf("block at %d: %w", off, err)
		}
		out = append(out, block...)
		off += n
	}
	return out, nil
}
