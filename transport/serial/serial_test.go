package serial

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-fwlink/protocol"
	"github.com/moffa90/go-fwlink/session"
)

// trickleConn delivers its input a few bytes per Read, like a serial line.
type trickleConn struct {
	in      []byte
	chunk   int
	stall   bool
	written bytes.Buffer
	closed  bool
}

func (c *trickleConn) Read(b []byte) (int, error) {
	if len(c.in) == 0 {
		if c.stall {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := c.chunk
	if n > len(b) {
		n = len(b)
	}
	if n > len(c.in) {
		n = len(c.in)
	}
	copy(b, c.in[:n])
	c.in = c.in[n:]
	return n, nil
}

func (c *trickleConn) Write(b []byte) (int, error) { return c.written.Write(b) }

func (c *trickleConn) Close() error {
	c.closed = true
	return nil
}

func ackFrame(t *testing.T, code uint32) []byte {
	t.Helper()
	frame, err := protocol.EncodeFrame(protocol.BuildHeader(protocol.ServiceFileTransfer, protocol.CmdFileTransferInfo, 0), protocol.AckFields(code))
	require.NoError(t, err)
	return frame
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyACM0")
	assert.Equal(t, "/dev/ttyACM0", cfg.Port)
	assert.Equal(t, 115200, cfg.BaudRate)
	assert.Equal(t, time.Second, cfg.ReadTimeout)
}

func TestOpenRequiresPort(t *testing.T) {
	_, err := Open(Config{})
	assert.ErrorContains(t, err, "port is required")
}

func TestOpenMissingPort(t *testing.T) {
	_, err := Open(DefaultConfig(filepath.Join(t.TempDir(), "ttyNOPE")))
	assert.Error(t, err)
}

func TestPortExchangeOverTrickle(t *testing.T) {
	for _, chunk := range []int{1, 3, 7, 9, 10, 64} {
		conn := &trickleConn{in: ackFrame(t, 0), chunk: chunk}
		sess := session.New(NewPort(conn))

		fields, err := sess.Exchange(context.Background(), protocol.ServiceFileTransfer, protocol.CmdFileTransferInfo, nil)
		require.NoError(t, err, "chunk=%d", chunk)
		assert.NoError(t, protocol.CheckAck(fields), "chunk=%d", chunk)
		assert.NotZero(t, conn.written.Len())
	}
}

func TestPortStopsAtFrameEnd(t *testing.T) {
	first, second := ackFrame(t, 0), ackFrame(t, 5)
	conn := &trickleConn{in: append(append([]byte(nil), first...), second...), chunk: 64}
	port := NewPort(conn)

	buf := make([]byte, protocol.UnitSize)
	n, err := port.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, protocol.HeaderSize, n)

	n, err = port.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, first[protocol.HeaderSize:], buf[:n])

	f, err := protocol.ReadFrame(context.Background(), port, protocol.UnitSize)
	require.NoError(t, err)
	err = protocol.CheckAck(f.Fields)
	var ackErr *protocol.AckError
	require.True(t, errors.As(err, &ackErr))
	assert.Equal(t, uint32(5), ackErr.Code)
}

func TestPortHeaderTimeout(t *testing.T) {
	conn := &trickleConn{in: ackFrame(t, 0)[:4], chunk: 64, stall: true}
	_, err := NewPort(conn).Read(make([]byte, protocol.UnitSize))
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestPortPassesEmptyRead(t *testing.T) {
	conn := &trickleConn{chunk: 64, stall: true}
	n, err := NewPort(conn).Read(make([]byte, protocol.UnitSize))
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestPortShortBuffer(t *testing.T) {
	conn := &trickleConn{in: ackFrame(t, 0), chunk: 64}
	_, err := NewPort(conn).Read(make([]byte, protocol.HeaderSize-1))
	assert.ErrorIs(t, err, io.ErrShortBuffer)
}

func TestPortWriteAndClose(t *testing.T) {
	conn := &trickleConn{}
	port := NewPort(conn)

	n, err := port.Write([]byte{0x6b, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{0x6b, 0x00}, conn.written.Bytes())

	require.NoError(t, port.Close())
	assert.True(t, conn.closed)
}
