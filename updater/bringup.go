package updater

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moffa90/go-fwlink/protocol"
)

// ErrConfirmerRequired is returned when a bring-up install is attempted
// without an operator confirmation hook.
var ErrConfirmerRequired = errors.New("bring-up install requires a confirmer")

// BringupResult describes a completed bring-up install.
type BringupResult struct {
	// Device is the identification reported before the install
	Device *protocol.DeviceInfo

	// Profile is the profile selected for the device firmware
	Profile Profile

	// ImageSize is the number of image bytes sent
	ImageSize int

	// Ack is the acknowledgment of the closing file info handshake, if the
	// device sent one
	Ack *protocol.Ack
}

// InstallBringupImage sends a device-specific image as the raw payload of a
// single content frame, framed by two file info handshakes:
//  1. Query the device and select its profile by firmware version
//  2. Build the image for that profile
//  3. Ask the Confirmer, then send the provisional file info handshake
//  4. Send the image on the content command without checksum
//  5. Ask the Confirmer, then send the closing file info handshake
//
// A device whose firmware version is not in table fails with
// *UnsupportedFirmwareVersionError before anything is sent to the file
// transfer service.
func (u *Uploader) InstallBringupImage(ctx context.Context, table ProfileTable, builder ImageBuilder) (*BringupResult, error) {
	if u.config.Confirmer == nil {
		return nil, ErrConfirmerRequired
	}
	if builder == nil {
		return nil, fmt.Errorf("bring-up: image builder cannot be nil")
	}
	started := time.Now()

	info, err := u.session.DeviceInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("bring-up: %w", err)
	}

	profile, err := table.Lookup(info.FirmwareVersion)
	if err != nil {
		u.logError("no profile for device firmware",
			"model", info.Model,
			"firmware", info.FirmwareVersion,
		)
		return nil, err
	}
	if profile.Model != "" && profile.Model != info.Model {
		return nil, &DeviceMismatchError{Expected: profile.Model, Actual: info.Model}
	}

	image, err := builder.BuildImage(profile)
	if err != nil {
		return nil, fmt.Errorf("bring-up: %w", err)
	}
	if len(image) > protocol.MaxPayloadSize {
		return nil, &ImageLayoutError{Reason: fmt.Sprintf("image of %d bytes exceeds frame payload limit", len(image))}
	}

	metadata, err := profile.Metadata.Encode()
	if err != nil {
		return nil, fmt.Errorf("bring-up: %w", err)
	}

	u.logInfo("bring-up profile selected",
		"model", info.Model,
		"firmware", info.FirmwareVersion,
		"image_base", fmt.Sprintf("0x%08X", profile.ImageBase()),
		"image_size", len(image),
	)

	prompt := fmt.Sprintf("Install %d-byte bring-up image on %s firmware %s?", len(image), info.Model, info.FirmwareVersion)
	if err := u.config.Confirmer.Confirm(ctx, prompt); err != nil {
		return nil, fmt.Errorf("bring-up: %w", err)
	}

	// The provisional handshake only primes the transfer service; its answer
	// is read to keep the channel drained but not required to succeed.
	f, err := u.session.ExchangeFrame(ctx, protocol.ServiceFileTransfer, protocol.CmdFileTransferInfo, metadata, true)
	if err != nil {
		return nil, fmt.Errorf("bring-up provisional info: %w", err)
	}
	if ack, err := protocol.ParseAck(f.Fields); err == nil {
		u.logDebug("provisional info answered", "kind", ack.Kind.String(), "code", ack.Code)
	}

	u.reportProgress(Progress{
		Phase:       PhaseBringup,
		TotalSize:   uint64(len(image)),
		ElapsedTime: time.Since(started),
	})

	if err := u.session.Send(ctx, protocol.ServiceFileTransfer, protocol.CmdFileTransferContent, image, false); err != nil {
		return nil, fmt.Errorf("bring-up image: %w", err)
	}

	u.reportProgress(Progress{
		Phase:       PhaseBringup,
		Offset:      uint64(len(image)),
		TotalSize:   uint64(len(image)),
		Percent:     100,
		ElapsedTime: time.Since(started),
	})

	if err := u.config.Confirmer.Confirm(ctx, "Bring-up image sent, continue?"); err != nil {
		return nil, fmt.Errorf("bring-up: %w", err)
	}

	f, err = u.session.ExchangeFrame(ctx, protocol.ServiceFileTransfer, protocol.CmdFileTransferInfo, metadata, true)
	if err != nil {
		return nil, fmt.Errorf("bring-up closing info: %w", err)
	}

	result := &BringupResult{
		Device:    info,
		Profile:   profile,
		ImageSize: len(image),
	}
	if ack, err := protocol.ParseAck(f.Fields); err == nil {
		result.Ack = &ack
	}

	u.logInfo("bring-up image installed",
		"firmware", info.FirmwareVersion,
		"elapsed", time.Since(started).String(),
	)
	return result, nil
}
