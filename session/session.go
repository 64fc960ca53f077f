package session

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/moffa90/go-fwlink/protocol"
)

// Session performs framed exchanges over a device channel.
//
// Session is safe for concurrent use; exchanges are serialized.
type Session struct {
	mu     sync.Mutex
	ch     io.ReadWriter
	unit   int
	logger Logger
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets a logger for frame-level debug output.
func WithLogger(logger Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithUnitSize sets the primitive transport unit. Default is protocol.UnitSize.
func WithUnitSize(size int) Option {
	return func(s *Session) {
		if size > 0 {
			s.unit = size
		}
	}
}

// New creates a Session over ch. Each ch.Write call sends at most one unit and
// each ch.Read call returns at most one unit.
func New(ch io.ReadWriter, opts ...Option) *Session {
	if ch == nil {
		panic("channel cannot be nil")
	}

	s := &Session{
		ch:   ch,
		unit: protocol.UnitSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exchange sends payload to service/command with a checksum and returns the
// decoded TLV fields of the response.
//
// Example:
//
//	payload, _ := protocol.EncodeTLV(protocol.TagFileOffset, offsetBytes)
//	fields, err := sess.Exchange(ctx, protocol.ServiceFileTransfer, protocol.CmdFileTransferContent, payload)
func (s *Session) Exchange(ctx context.Context, serviceID, commandID byte, payload []byte) (protocol.Fields, error) {
	f, err := s.ExchangeFrame(ctx, serviceID, commandID, payload, true)
	if err != nil {
		return nil, err
	}
	return f.Fields, nil
}

// ExchangeFrame sends one request frame and returns the complete response frame.
// includeChecksum controls whether the request carries its trailing CRC32;
// responses are always checked.
func (s *Session) ExchangeFrame(ctx context.Context, serviceID, commandID byte, payload []byte, includeChecksum bool) (*protocol.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.send(ctx, serviceID, commandID, payload, includeChecksum); err != nil {
		return nil, err
	}

	f, err := protocol.ReadFrame(ctx, s.ch, s.unit)
	if err != nil {
		msg := "read response failed"
		if protocol.IsProtocolError(err) {
			// The rest of the response may still be queued on the channel.
			msg = "malformed response, channel must be drained"
		}
		s.logError(msg,
			"service", serviceID,
			"command", commandID,
			"error", err,
		)
		return nil, fmt.Errorf("read response to %d/%d: %w", serviceID, commandID, err)
	}

	s.logDebug("frame received",
		"service", f.Header.ServiceID,
		"command", f.Header.CommandID,
		"length", f.Header.PayloadLength,
		"tags", len(f.Fields),
	)
	return f, nil
}

// Send writes one request frame without waiting for a response.
// Use it for commands the device does not answer.
func (s *Session) Send(ctx context.Context, serviceID, commandID byte, payload []byte, includeChecksum bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.send(ctx, serviceID, commandID, payload, includeChecksum)
}

func (s *Session) send(ctx context.Context, serviceID, commandID byte, payload []byte, includeChecksum bool) error {
	if len(payload) > protocol.MaxPayloadSize {
		return &protocol.ProtocolError{
			Kind:     protocol.ErrInvalidLength,
			Expected: protocol.MaxPayloadSize,
			Actual:   uint32(len(payload)),
		}
	}

	h := protocol.BuildHeader(serviceID, commandID, uint16(len(payload)))
	if err := protocol.WriteFrame(ctx, s.ch, h, payload, includeChecksum, s.unit); err != nil {
		s.logError("write request failed",
			"service", serviceID,
			"command", commandID,
			"error", err,
		)
		return fmt.Errorf("write request %d/%d: %w", serviceID, commandID, err)
	}

	s.logDebug("frame sent",
		"service", serviceID,
		"command", commandID,
		"length", len(payload),
		"checksum", includeChecksum,
	)
	return nil
}

// DeviceInfo queries the device identification strings.
func (s *Session) DeviceInfo(ctx context.Context) (*protocol.DeviceInfo, error) {
	fields, err := s.Exchange(ctx, protocol.ServiceDeviceInfo, protocol.CmdDeviceInfoBasic, nil)
	if err != nil {
		return nil, fmt.Errorf("device info: %w", err)
	}
	return protocol.ParseDeviceInfo(fields), nil
}

// logDebug logs a debug message if a logger is configured.
func (s *Session) logDebug(msg string, keysAndValues ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (s *Session) logError(msg string, keysAndValues ...interface{}) {
	if s.logger != nil {
		s.logger.Error(msg, keysAndValues...)
	}
}
