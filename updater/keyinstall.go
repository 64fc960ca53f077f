package updater

import (
	"encoding/binary"
	"fmt"
)

// Key install image layout. Offsets are relative to the first image byte,
// which the device stores at Profile.ImageBase.
const (
	// KeyInstallSize is the total image size
	KeyInstallSize = 4506

	// KeyInstallKeyOffset is where the uncompressed public key is placed
	KeyInstallKeyOffset = 258

	// KeyInstallCodeOffset is where the installer code is placed
	KeyInstallCodeOffset = 514

	// KeyInstallTimerOffset is where the scheduled-callback descriptor is placed
	KeyInstallTimerOffset = 1026

	// KeyInstallTailOffset holds the pointer that links the descriptor into
	// the device's timer list
	KeyInstallTailOffset = KeyInstallSize - 4

	// MaxKeyInstallCodeSize is the room between the code offset and the descriptor
	MaxKeyInstallCodeSize = KeyInstallTimerOffset - 2 - KeyInstallCodeOffset

	// KeyInstallFill pads the key and code areas
	KeyInstallFill = 0xAB

	uncompressedKeySize = 65

	// Descriptor fields: list links, delay, id, callback, info, flags.
	timerCallbackField = 32
	timerFlagsField    = 40
	timerFlags         = 0x02
)

// KeyInstallLayout returns a builder for the image that installs pub as the
// device's update key. code runs from the descriptor's callback; codePatches
// are applied to it, with At relative to the start of code.
//
// The descriptor's callback points at the code with the Thumb bit set, and
// the trailing pointer at the descriptor itself. Both are resolved against
// SymbolImage, so one builder serves every profile.
//
// Example:
//
//	layout, err := updater.KeyInstallLayout(pub, code,
//	    updater.Patch{At: 52, Symbol: updater.SymbolImage, Addend: updater.KeyInstallKeyOffset},
//	    updater.Patch{At: 68, Symbol: "print", Addend: 1},
//	)
//	result, err := up.InstallBringupImage(ctx, cfg.Profiles, layout)
func KeyInstallLayout(pub, code []byte, codePatches ...Patch) (*LayoutBuilder, error) {
	if len(pub) != uncompressedKeySize || pub[0] != 0x04 {
		return nil, &ImageLayoutError{Block: "key", Reason: fmt.Sprintf("expected %d-byte uncompressed public key", uncompressedKeySize)}
	}
	if len(code) == 0 || len(code) > MaxKeyInstallCodeSize {
		return nil, &ImageLayoutError{Block: "code", Reason: fmt.Sprintf("code of %d bytes outside 1..%d", len(code), MaxKeyInstallCodeSize)}
	}

	timer := make([]byte, KeyInstallSize-KeyInstallTimerOffset)
	binary.LittleEndian.PutUint32(timer[timerFlagsField:], timerFlags)

	return &LayoutBuilder{
		Size: KeyInstallSize,
		Fill: KeyInstallFill,
		Blocks: []Block{
			{Name: "key", Offset: KeyInstallKeyOffset, Data: append([]byte(nil), pub...)},
			{Name: "code", Offset: KeyInstallCodeOffset, Data: append([]byte(nil), code...), Patches: append([]Patch(nil), codePatches...)},
			{Name: "timer", Offset: KeyInstallTimerOffset, Data: timer, Patches: []Patch{
				{At: timerCallbackField, Symbol: SymbolImage, Addend: KeyInstallCodeOffset + 1},
				{At: KeyInstallTailOffset - KeyInstallTimerOffset, Symbol: SymbolImage, Addend: KeyInstallTimerOffset},
			}},
		},
	}, nil
}
