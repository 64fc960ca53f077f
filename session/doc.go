// Package session runs request/response exchanges with a device over a
// unit-oriented channel.
//
// A Session owns the channel: it writes one request frame, then reads and
// validates one response frame. Exchanges are serialized; the protocol is
// half-duplex and allows a single outstanding request.
//
//	dev, _ := usb.Open(usb.DefaultConfig())
//	sess := session.New(dev, session.WithLogger(logger))
//
//	info, err := sess.DeviceInfo(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(info.Model, info.FirmwareVersion)
package session
