package updater

import (
	"errors"
	"strings"
	"testing"

	"github.com/moffa90/go-fwlink/protocol"
)

func TestDeviceMismatchError(t *testing.T) {
	err := &DeviceMismatchError{
		Expected: "Kv3A",
		Actual:   "Kv2B",
	}

	errMsg := err.Error()

	if !strings.Contains(errMsg, "device mismatch") {
		t.Errorf("error message should contain 'device mismatch', got: %s", errMsg)
	}

	if !strings.Contains(errMsg, `"Kv3A"`) {
		t.Errorf("error message should contain expected model, got: %s", errMsg)
	}

	if !strings.Contains(errMsg, `"Kv2B"`) {
		t.Errorf("error message should contain actual model, got: %s", errMsg)
	}
}

func TestTransferError(t *testing.T) {
	cause := &protocol.AckError{Code: 3, Err: protocol.ErrAckRejected}
	err := &TransferError{
		Offset:    8192,
		TotalSize: 10000,
		Err:       cause,
	}

	errMsg := err.Error()

	if !strings.Contains(errMsg, "offset 8192 of 10000") {
		t.Errorf("error message should contain offsets, got: %s", errMsg)
	}

	if !errors.Is(err, protocol.ErrAckRejected) {
		t.Errorf("TransferError should unwrap to the ack failure")
	}
}

func TestUnsupportedFirmwareVersionError(t *testing.T) {
	tests := []struct {
		name    string
		err     *UnsupportedFirmwareVersionError
		wantMsg string
	}{
		{
			name: "with supported versions",
			err: &UnsupportedFirmwareVersionError{
				Version:   "1.3.0",
				Supported: []string{"1.2.2", "1.2.4"},
			},
			wantMsg: "supported versions are 1.2.2, 1.2.4",
		},
		{
			name: "empty table",
			err: &UnsupportedFirmwareVersionError{
				Version: "1.3.0",
			},
			wantMsg: "no profiles configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errMsg := tt.err.Error()
			if !strings.Contains(errMsg, tt.wantMsg) {
				t.Errorf("error message should contain %q, got: %s", tt.wantMsg, errMsg)
			}
			if !strings.Contains(errMsg, `"1.3.0"`) {
				t.Errorf("error message should contain the device version, got: %s", errMsg)
			}
		})
	}
}

func TestImageLayoutError(t *testing.T) {
	err := &ImageLayoutError{Block: "descriptor", Reason: "overlaps block \"key\""}
	if !strings.Contains(err.Error(), `block "descriptor"`) {
		t.Errorf("error message should name the block, got: %s", err.Error())
	}

	err = &ImageLayoutError{Reason: "size must be positive"}
	if err.Error() != "image layout: size must be positive" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestErrorTypes(t *testing.T) {
	// Test that all error types implement error interface
	var _ error = &DeviceMismatchError{}
	var _ error = &TransferError{}
	var _ error = &UnsupportedFirmwareVersionError{}
	var _ error = &ImageLayoutError{}
}
