// Package updater transfers firmware files to the device's file transfer service.
//
// # Overview
//
// This package drives the transfer sequence:
//   - Announcing the file (name, size, MD5 digest, signature)
//   - Sending the content in acknowledged blocks
//   - Finalizing the transfer
//
// # Basic Usage
//
//	// User provides the device channel (io.ReadWriter, one 64-byte unit per call)
//	device, err := usb.Open(usb.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer device.Close()
//
//	firmware, _ := os.ReadFile("keystone3.bin")
//	info, _ := updater.FileInfoFor("keystone3.bin", firmware, signature)
//
//	up := updater.New(device)
//	if err := up.Upload(context.Background(), info, firmware); err != nil {
//	    log.Fatal(err)
//	}
//
// # Progress Tracking
//
// Track content progress with a callback:
//
//	up := updater.New(device,
//	    updater.WithProgressCallback(func(p updater.Progress) {
//	        fmt.Printf("[%s] %d%% done\n", p.Phase, p.Percent)
//	    }),
//	)
//
// # Resuming
//
// Nothing is retried. A failed content upload returns a *TransferError carrying
// the last offset the device acknowledged:
//
//	err := up.UploadContent(ctx, firmware)
//	var te *updater.TransferError
//	if errors.As(err, &te) {
//	    err = up.ResumeContent(ctx, firmware, te.Offset)
//	}
//
// # Bring-up Images
//
// InstallBringupImage sends a device-specific image built by an ImageBuilder.
// Device addresses come from a ProfileTable keyed by firmware version, usually
// loaded with the config package; a device running a version absent from the
// table is refused with *UnsupportedFirmwareVersionError before anything is sent.
//
// # Error Handling
//
// The package provides structured error types:
//   - TransferError: Content upload stopped, with resume offset
//   - UnsupportedFirmwareVersionError: No profile for the device firmware
//   - DeviceMismatchError: Device model doesn't match the profile
//   - ImageLayoutError: Bring-up image layout is invalid
//   - protocol.AckError: Device refused a command
//   - protocol.ProtocolError, protocol.TransportError: Frame or channel failure
package updater
