package updater

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/moffa90/go-fwlink/protocol"
)

// ImageBuilder produces a bring-up image for one device profile.
type ImageBuilder interface {
	BuildImage(p Profile) ([]byte, error)
}

// Patch writes a little-endian 32-bit device address into a block.
type Patch struct {
	// At is the byte offset inside the block
	At int

	// Symbol is resolved through the profile (SymbolImage or a profile symbol)
	Symbol string

	// Addend is added to the resolved address
	Addend int64
}

// Block is a run of bytes placed at a fixed offset in the image.
type Block struct {
	Name    string
	Offset  int
	Data    []byte
	Patches []Patch
}

// LayoutBuilder assembles a fixed-size image from placed blocks. Bytes not
// covered by a block are set to Fill. Block contents are copied before
// patching; the builder can be reused across profiles.
type LayoutBuilder struct {
	Size   int
	Fill   byte
	Blocks []Block
}

// BuildImage implements ImageBuilder.
func (b *LayoutBuilder) BuildImage(p Profile) ([]byte, error) {
	if b.Size <= 0 || b.Size > protocol.MaxPayloadSize {
		return nil, &ImageLayoutError{Reason: fmt.Sprintf("size %d outside 1..%d", b.Size, protocol.MaxPayloadSize)}
	}

	blocks := append([]Block(nil), b.Blocks...)
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Offset < blocks[j].Offset })

	image := make([]byte, b.Size)
	for i := range image {
		image[i] = b.Fill
	}

	end := 0
	prev := ""
	for _, blk := range blocks {
		if blk.Offset < 0 || blk.Offset+len(blk.Data) > b.Size {
			return nil, &ImageLayoutError{Block: blk.Name, Reason: fmt.Sprintf("bytes %d..%d outside image of %d bytes", blk.Offset, blk.Offset+len(blk.Data), b.Size)}
		}
		if blk.Offset < end {
			return nil, &ImageLayoutError{Block: blk.Name, Reason: fmt.Sprintf("overlaps block %q", prev)}
		}

		dst := image[blk.Offset : blk.Offset+len(blk.Data)]
		copy(dst, blk.Data)

		for _, patch := range blk.Patches {
			if patch.At < 0 || patch.At+4 > len(dst) {
				return nil, &ImageLayoutError{Block: blk.Name, Reason: fmt.Sprintf("patch at %d does not fit in %d bytes", patch.At, len(dst))}
			}
			addr, err := p.Resolve(patch.Symbol)
			if err != nil {
				return nil, &ImageLayoutError{Block: blk.Name, Reason: err.Error()}
			}
			value := int64(addr) + patch.Addend
			if value < 0 || value > math.MaxUint32 {
				return nil, &ImageLayoutError{Block: blk.Name, Reason: fmt.Sprintf("patched address %#x out of range", value)}
			}
			binary.LittleEndian.PutUint32(dst[patch.At:], uint32(value))
		}

		end = blk.Offset + len(blk.Data)
		prev = blk.Name
	}

	return image, nil
}
