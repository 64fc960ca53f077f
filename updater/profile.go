package updater

import (
	"fmt"
	"sort"
	"strings"
)

// SymbolImage resolves to the device address of the first image byte.
const SymbolImage = "image"

// Profile holds the device-specific parameters needed to install a bring-up
// image on one firmware build.
type Profile struct {
	// FirmwareVersion is the version string reported by the device
	FirmwareVersion string

	// Model restricts the profile to one device model (empty matches any)
	Model string

	// ReceiveBuffer is the device address of the protocol receive buffer
	ReceiveBuffer uint32

	// ImageOffset is the distance from ReceiveBuffer to the first image byte
	ImageOffset uint32

	// Symbols maps names used by image patches to device addresses
	Symbols map[string]uint32

	// Metadata is announced in the file info handshakes around the image
	Metadata FileInfo
}

// ImageBase returns the device address of the first image byte.
func (p Profile) ImageBase() uint32 {
	return p.ReceiveBuffer + p.ImageOffset
}

// Resolve returns the device address of a symbol.
func (p Profile) Resolve(symbol string) (uint32, error) {
	if symbol == SymbolImage {
		return p.ImageBase(), nil
	}
	addr, ok := p.Symbols[symbol]
	if !ok {
		return 0, fmt.Errorf("firmware %s: unknown symbol %q", p.FirmwareVersion, symbol)
	}
	return addr, nil
}

// Validate checks that the profile is complete.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.FirmwareVersion) == "" {
		return fmt.Errorf("profile: firmware version is required")
	}
	if p.ReceiveBuffer == 0 {
		return fmt.Errorf("profile %s: receive buffer address is required", p.FirmwareVersion)
	}
	if _, ok := p.Symbols[SymbolImage]; ok {
		return fmt.Errorf("profile %s: symbol %q is reserved", p.FirmwareVersion, SymbolImage)
	}
	if p.Metadata.Name == "" {
		return fmt.Errorf("profile %s: metadata file name is required", p.FirmwareVersion)
	}
	if _, err := p.Metadata.Encode(); err != nil {
		return fmt.Errorf("profile %s: %w", p.FirmwareVersion, err)
	}
	return nil
}

// ProfileTable maps firmware version strings to profiles.
type ProfileTable map[string]Profile

// NewProfileTable validates profiles and indexes them by firmware version.
// Duplicate versions are rejected.
func NewProfileTable(profiles ...Profile) (ProfileTable, error) {
	table := make(ProfileTable, len(profiles))
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := table[p.FirmwareVersion]; dup {
			return nil, fmt.Errorf("profile: duplicate firmware version %s", p.FirmwareVersion)
		}
		table[p.FirmwareVersion] = p
	}
	return table, nil
}

// Lookup returns the profile for a firmware version, or an
// *UnsupportedFirmwareVersionError.
func (t ProfileTable) Lookup(version string) (Profile, error) {
	p, ok := t[version]
	if !ok {
		return Profile{}, &UnsupportedFirmwareVersionError{
			Version:   version,
			Supported: t.Versions(),
		}
	}
	return p, nil
}

// Versions returns the supported firmware versions in sorted order.
func (t ProfileTable) Versions() []string {
	versions := make([]string, 0, len(t))
	for v := range t {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}
