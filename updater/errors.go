package updater

import (
	"fmt"
	"strings"
)

// TransferError reports a failed content upload. Offset is the last offset the
// device committed; passing it to ResumeContent continues the transfer.
type TransferError struct {
	Offset    uint64
	TotalSize uint64
	Err       error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer stopped at offset %d of %d: %v", e.Offset, e.TotalSize, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// DeviceMismatchError indicates that the device model doesn't match the profile.
type DeviceMismatchError struct {
	Expected string
	Actual   string
}

func (e *DeviceMismatchError) Error() string {
	return fmt.Sprintf("device mismatch: profile expects model %q, device is %q",
		e.Expected, e.Actual)
}

// UnsupportedFirmwareVersionError indicates that the device runs a firmware
// version absent from the profile table.
type UnsupportedFirmwareVersionError struct {
	Version   string
	Supported []string
}

func (e *UnsupportedFirmwareVersionError) Error() string {
	if len(e.Supported) == 0 {
		return fmt.Sprintf("unsupported firmware version %q: no profiles configured", e.Version)
	}
	return fmt.Sprintf("unsupported firmware version %q: supported versions are %s",
		e.Version, strings.Join(e.Supported, ", "))
}

// ImageLayoutError indicates that a bring-up image layout cannot be built.
type ImageLayoutError struct {
	Block  string
	Reason string
}

func (e *ImageLayoutError) Error() string {
	if e.Block == "" {
		return fmt.Sprintf("image layout: %s", e.Reason)
	}
	return fmt.Sprintf("image layout: block %q: %s", e.Block, e.Reason)
}
