package updater

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-fwlink/internal/devicesim"
	"github.com/moffa90/go-fwlink/protocol"
)

type recordingConfirmer struct {
	prompts []string
	decline int // 1-based prompt index to decline, 0 = accept all
}

func (c *recordingConfirmer) Confirm(_ context.Context, prompt string) error {
	c.prompts = append(c.prompts, prompt)
	if c.decline == len(c.prompts) {
		return ErrNotConfirmed
	}
	return nil
}

func testTable(t *testing.T) ProfileTable {
	t.Helper()
	table, err := NewProfileTable(testProfile("1.2.4"), testProfile("1.1.0"))
	require.NoError(t, err)
	return table
}

func testBuilder() *LayoutBuilder {
	return &LayoutBuilder{
		Size: 200,
		Blocks: []Block{
			{Name: "vector", Offset: 0, Data: make([]byte, 8), Patches: []Patch{{At: 4, Symbol: "entry"}}},
			{Name: "body", Offset: 16, Data: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		},
	}
}

func fileTransferRequests(dev *devicesim.Device) []devicesim.Request {
	var out []devicesim.Request
	for _, r := range dev.Requests() {
		if r.Header.ServiceID == protocol.ServiceFileTransfer {
			out = append(out, r)
		}
	}
	return out
}

func TestInstallBringupImage(t *testing.T) {
	dev := devicesim.New("Kv3A", "1.2.4")
	confirm := &recordingConfirmer{}
	var phases []string
	up := New(dev,
		WithConfirmer(confirm),
		WithProgressCallback(func(p Progress) { phases = append(phases, p.Phase) }),
	)

	result, err := up.InstallBringupImage(context.Background(), testTable(t), testBuilder())
	require.NoError(t, err)

	assert.Equal(t, "1.2.4", result.Device.FirmwareVersion)
	assert.Equal(t, "1.2.4", result.Profile.FirmwareVersion)
	assert.Equal(t, 200, result.ImageSize)
	require.NotNil(t, result.Ack)
	assert.True(t, result.Ack.OK())
	assert.Len(t, confirm.prompts, 2)
	assert.Equal(t, []string{PhaseBringup, PhaseBringup}, phases)

	reqs := fileTransferRequests(dev)
	require.Len(t, reqs, 3)
	assert.Equal(t, byte(protocol.CmdFileTransferInfo), reqs[0].Header.CommandID)
	assert.True(t, reqs[0].Checksummed)
	assert.Equal(t, byte(protocol.CmdFileTransferContent), reqs[1].Header.CommandID)
	assert.False(t, reqs[1].Checksummed)
	assert.Equal(t, byte(protocol.CmdFileTransferInfo), reqs[2].Header.CommandID)
	assert.Equal(t, reqs[0].Payload, reqs[2].Payload)

	raw := dev.RawContent()
	require.Len(t, raw, 1)
	assert.Len(t, raw[0], 200)
	assert.Equal(t, []byte{0x00, 0x10, 0x00, 0x08}, raw[0][4:8])
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, raw[0][16:20])
	assert.Empty(t, dev.Chunks())
}

func TestInstallBringupImageUnsupportedVersion(t *testing.T) {
	dev := devicesim.New("Kv3A", "2.0.0")
	confirm := &recordingConfirmer{}
	up := New(dev, WithConfirmer(confirm))

	_, err := up.InstallBringupImage(context.Background(), testTable(t), testBuilder())

	var unsupported *UnsupportedFirmwareVersionError
	require.True(t, errors.As(err, &unsupported), "got %v", err)
	assert.Equal(t, "2.0.0", unsupported.Version)
	assert.Empty(t, fileTransferRequests(dev), "nothing may reach the file transfer service")
	assert.Empty(t, confirm.prompts)
}

func TestInstallBringupImageModelMismatch(t *testing.T) {
	dev := devicesim.New("Kv2", "1.2.4")
	up := New(dev, WithConfirmer(&recordingConfirmer{}))

	_, err := up.InstallBringupImage(context.Background(), testTable(t), testBuilder())

	var mismatch *DeviceMismatchError
	require.True(t, errors.As(err, &mismatch), "got %v", err)
	assert.Equal(t, "Kv3A", mismatch.Expected)
	assert.Equal(t, "Kv2", mismatch.Actual)
	assert.Empty(t, fileTransferRequests(dev))
}

func TestInstallBringupImageRequiresConfirmer(t *testing.T) {
	dev := devicesim.New("Kv3A", "1.2.4")
	up := New(dev)

	_, err := up.InstallBringupImage(context.Background(), testTable(t), testBuilder())
	assert.ErrorIs(t, err, ErrConfirmerRequired)
	assert.Empty(t, dev.Requests())
}

func TestInstallBringupImageDeclined(t *testing.T) {
	tests := []struct {
		name        string
		decline     int
		wantFileReq int
	}{
		{name: "before provisional info", decline: 1, wantFileReq: 0},
		{name: "before closing info", decline: 2, wantFileReq: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := devicesim.New("Kv3A", "1.2.4")
			up := New(dev, WithConfirmer(&recordingConfirmer{decline: tt.decline}))

			_, err := up.InstallBringupImage(context.Background(), testTable(t), testBuilder())
			assert.ErrorIs(t, err, ErrNotConfirmed)
			dev.Flush()
			assert.Len(t, fileTransferRequests(dev), tt.wantFileReq)
		})
	}
}

func TestInstallBringupImageLayoutError(t *testing.T) {
	dev := devicesim.New("Kv3A", "1.2.4")
	up := New(dev, WithConfirmer(&recordingConfirmer{}))

	_, err := up.InstallBringupImage(context.Background(), testTable(t), &LayoutBuilder{Size: 4, Blocks: []Block{{Name: "x", Data: make([]byte, 8)}}})
	var layoutErr *ImageLayoutError
	assert.True(t, errors.As(err, &layoutErr), "got %v", err)
	assert.Empty(t, fileTransferRequests(dev))
}
