// Package usb opens the device's bulk endpoint pair with gousb and exposes it
// as an io.ReadWriteCloser carrying one transport unit per call.
package usb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"

	"github.com/moffa90/go-fwlink/protocol"
)

// DefaultVendorID is the USB vendor id the device enumerates with.
const DefaultVendorID = 0x1209

// ErrDeviceNotFound is returned when no device matches the configured ids.
var ErrDeviceNotFound = errors.New("usb: device not found")

// Config selects the device and endpoints.
type Config struct {
	// VendorID is the USB vendor id
	VendorID gousb.ID

	// ProductID is the USB product id (0 matches any product of VendorID)
	ProductID gousb.ID

	// InEndpoint and OutEndpoint are endpoint numbers on interface 0;
	// 0 selects the first bulk endpoint in that direction
	InEndpoint  int
	OutEndpoint int

	// Timeout bounds each read and write (0 = no timeout)
	Timeout time.Duration
}

// DefaultConfig returns the configuration for the device's default ids.
func DefaultConfig() Config {
	return Config{
		VendorID: DefaultVendorID,
		Timeout:  5 * time.Second,
	}
}

// Device is an open bulk endpoint pair.
type Device struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	done    func()
	in      *gousb.InEndpoint
	out     *gousb.OutEndpoint
	timeout time.Duration
}

// Open finds the device and claims its default interface.
//
// Example:
//
//	device, err := usb.Open(usb.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer device.Close()
func Open(cfg Config) (*Device, error) {
	ctx := gousb.NewContext()

	dev, err := openDevice(ctx, cfg)
	if err != nil {
		_ = ctx.Close()
		return nil, err
	}

	d := &Device{ctx: ctx, dev: dev, timeout: cfg.Timeout}
	if err := d.claim(cfg); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func openDevice(ctx *gousb.Context, cfg Config) (*gousb.Device, error) {
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == cfg.VendorID && (cfg.ProductID == 0 || desc.Product == cfg.ProductID)
	})
	if len(devs) == 0 {
		if err != nil {
			return nil, fmt.Errorf("usb: open %s:%s: %w", cfg.VendorID, cfg.ProductID, err)
		}
		return nil, ErrDeviceNotFound
	}

	// Keep the first match; the protocol addresses a single device.
	for _, extra := range devs[1:] {
		_ = extra.Close()
	}
	return devs[0], nil
}

func (d *Device) claim(cfg Config) error {
	if err := d.dev.SetAutoDetach(true); err != nil {
		return fmt.Errorf("usb: auto detach: %w", err)
	}

	intf, done, err := d.dev.DefaultInterface()
	if err != nil {
		return fmt.Errorf("usb: claim interface: %w", err)
	}
	d.done = done

	inNum, outNum := cfg.InEndpoint, cfg.OutEndpoint
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn && inNum == 0 {
			inNum = ep.Number
		}
		if ep.Direction == gousb.EndpointDirectionOut && outNum == 0 {
			outNum = ep.Number
		}
	}

	if d.in, err = intf.InEndpoint(inNum); err != nil {
		return fmt.Errorf("usb: in endpoint %d: %w", inNum, err)
	}
	if d.out, err = intf.OutEndpoint(outNum); err != nil {
		return fmt.Errorf("usb: out endpoint %d: %w", outNum, err)
	}
	return nil
}

func (d *Device) opContext() (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), d.timeout)
}

// Read reads one unit from the IN endpoint.
func (d *Device) Read(p []byte) (int, error) {
	if len(p) > protocol.UnitSize {
		p = p[:protocol.UnitSize]
	}
	ctx, cancel := d.opContext()
	defer cancel()
	return d.in.ReadContext(ctx, p)
}

// Write writes one unit to the OUT endpoint.
func (d *Device) Write(p []byte) (int, error) {
	ctx, cancel := d.opContext()
	defer cancel()
	return d.out.WriteContext(ctx, p)
}

// Close releases the interface, the device and the USB context.
func (d *Device) Close() error {
	if d.done != nil {
		d.done()
		d.done = nil
	}
	var errs []error
	if d.dev != nil {
		errs = append(errs, d.dev.Close())
		d.dev = nil
	}
	if d.ctx != nil {
		errs = append(errs, d.ctx.Close())
		d.ctx = nil
	}
	return errors.Join(errs...)
}
