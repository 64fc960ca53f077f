// Package serial exposes a CDC-ACM serial port as an io.ReadWriteCloser for
// devices that speak the framed protocol over a virtual COM port.
package serial

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	bugst "go.bug.st/serial"

	"github.com/moffa90/go-fwlink/protocol"
)

// ErrTimeout is returned when the port stops delivering bytes in the middle
// of a frame header.
var ErrTimeout = errors.New("serial: read timed out")

// Config selects the port and line settings.
type Config struct {
	// Port is the device path (e.g. /dev/ttyACM0 or COM3)
	Port string

	// BaudRate is ignored by most CDC-ACM devices but required by the driver
	BaudRate int

	// ReadTimeout bounds each read; a read that times out returns 0 bytes
	ReadTimeout time.Duration
}

// DefaultConfig returns 115200 baud with a one second read timeout.
func DefaultConfig(port string) Config {
	return Config{
		Port:        port,
		BaudRate:    115200,
		ReadTimeout: time.Second,
	}
}

// Open opens the port in 8N1 mode and wraps it in a Port.
//
// Example:
//
//	port, err := serial.Open(serial.DefaultConfig("/dev/ttyACM0"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
func Open(cfg Config) (*Port, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("serial: port is required")
	}
	mode := &bugst.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	port, err := bugst.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Port, err)
	}
	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("serial: set read timeout: %w", err)
		}
	}
	return NewPort(port), nil
}

// Port gives a byte stream the read semantics the frame reader expects from
// a bulk endpoint. The first Read of each frame returns exactly the frame
// header, and later Reads stop at the end of the declared frame.
type Port struct {
	rw io.ReadWriteCloser

	// remaining is the number of bytes left in the current frame
	remaining int
}

// NewPort wraps an open byte stream.
func NewPort(rw io.ReadWriteCloser) *Port {
	return &Port{rw: rw}
}

// Read implements io.Reader.
func (p *Port) Read(b []byte) (int, error) {
	if p.remaining == 0 {
		return p.readHeader(b)
	}
	if len(b) > p.remaining {
		b = b[:p.remaining]
	}
	n, err := p.rw.Read(b)
	p.remaining -= n
	return n, err
}

// readHeader blocks until a full header has arrived. A read that returns
// nothing before the first header byte is passed through as an empty read.
func (p *Port) readHeader(b []byte) (int, error) {
	if len(b) < protocol.HeaderSize {
		return 0, io.ErrShortBuffer
	}
	hdr := b[:protocol.HeaderSize]

	n, err := p.rw.Read(hdr)
	if n == 0 || err != nil {
		return 0, err
	}
	if _, err := io.ReadFull(stallReader{p.rw}, hdr[n:]); err != nil {
		return 0, err
	}

	if hdr[0] == protocol.ProtocolID {
		p.remaining = int(binary.LittleEndian.Uint16(hdr[protocol.HeaderSize-2:])) + protocol.ChecksumSize
	}
	return protocol.HeaderSize, nil
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	return p.rw.Write(b)
}

// Close closes the underlying port.
func (p *Port) Close() error {
	return p.rw.Close()
}

// stallReader turns an empty read, which is how a serial read times out,
// into ErrTimeout.
type stallReader struct {
	r io.Reader
}

func (s stallReader) Read(b []byte) (int, error) {
	n, err := s.r.Read(b)
	if n == 0 && err == nil {
		return 0, ErrTimeout
	}
	return n, err
}

// Ports lists the serial ports present on the system.
func Ports() ([]string, error) {
	return bugst.GetPortsList()
}
