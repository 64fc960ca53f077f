// Package transport opens the device channel selected by configuration.
// The usb and serial subpackages hold the concrete adapters.
package transport

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/gousb"

	"github.com/moffa90/go-fwlink/config"
	"github.com/moffa90/go-fwlink/transport/serial"
	"github.com/moffa90/go-fwlink/transport/usb"
)

// Open opens a USB or serial channel as described by cfg.
func Open(cfg config.TransportConfig) (io.ReadWriteCloser, error) {
	switch cfg.Kind {
	case config.TransportUSB, "":
		dev, err := usb.Open(usb.Config{
			VendorID:    gousb.ID(cfg.VendorID),
			ProductID:   gousb.ID(cfg.ProductID),
			InEndpoint:  cfg.InEndpoint,
			OutEndpoint: cfg.OutEndpoint,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return dev, nil
	case config.TransportSerial:
		if cfg.Port == "" {
			return nil, missingPort()
		}
		port, err := serial.Open(serial.Config{
			Port:        cfg.Port,
			BaudRate:    cfg.BaudRate,
			ReadTimeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return port, nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
}

// missingPort lists the ports present so the operator can pick one.
func missingPort() error {
	ports, err := serial.Ports()
	if err != nil || len(ports) == 0 {
		return fmt.Errorf("serial: port is required (no ports found)")
	}
	return fmt.Errorf("serial: port is required (available: %s)", strings.Join(ports, ", "))
}
