package updater

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/moffa90/go-fwlink/protocol"
	"github.com/moffa90/go-fwlink/session"
)

// FileInfo describes the file announced to the device before its content.
type FileInfo struct {
	// Name is the file name stored on the device
	Name string

	// Size is the file size in bytes
	Size uint32

	// Digest is the MD5 digest of the file
	Digest []byte

	// Signature is the detached signature of the file
	Signature []byte
}

// FileInfoFor builds a FileInfo for payload, computing its size and MD5 digest.
func FileInfoFor(name string, payload, signature []byte) (FileInfo, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return FileInfo{}, fmt.Errorf("file too large: %d bytes", len(payload))
	}
	sum := md5.Sum(payload)
	return FileInfo{
		Name:      name,
		Size:      uint32(len(payload)),
		Digest:    sum[:],
		Signature: signature,
	}, nil
}

// Encode returns the file info TLV payload: name, size, digest and signature,
// in that order.
func (fi FileInfo) Encode() ([]byte, error) {
	size := make([]byte, 4)
	binary.LittleEndian.PutUint32(size, fi.Size)

	var out []byte
	var err error
	for _, rec := range []struct {
		tag   byte
		value []byte
	}{
		{protocol.TagFileName, []byte(fi.Name)},
		{protocol.TagFileSize, size},
		{protocol.TagFileMD5, fi.Digest},
		{protocol.TagFileSignature, fi.Signature},
	} {
		if out, err = protocol.AppendTLV(out, rec.tag, rec.value); err != nil {
			return nil, fmt.Errorf("encode file info tag %d: %w", rec.tag, err)
		}
	}
	return out, nil
}

// State is the progress of the current content transfer.
type State struct {
	// TotalSize is the payload size
	TotalSize uint64

	// Offset is the number of bytes the device has acknowledged
	Offset uint64

	// LastReportedPercent is the percentage passed to the last progress report
	LastReportedPercent int
}

// Uploader transfers files to the device's file transfer service.
//
// Uploader is not safe for concurrent use; the device accepts one transfer at a time.
type Uploader struct {
	session *session.Session
	config  Config
	state   State
	started time.Time
}

// New creates a new Uploader with the given device channel and options.
// The device must implement io.ReadWriter with one transport unit per call.
//
// Example:
//
//	device, _ := usb.Open(usb.DefaultConfig())
//	up := updater.New(device,
//	    updater.WithProgressCallback(progressFunc),
//	    updater.WithBlockSize(4096),
//	)
func New(device io.ReadWriter, opts ...Option) *Uploader {
	if device == nil {
		panic("device cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	sessOpts := []session.Option{session.WithUnitSize(cfg.UnitSize)}
	if cfg.Logger != nil {
		sessOpts = append(sessOpts, session.WithLogger(cfg.Logger))
	}

	return &Uploader{
		session: session.New(device, sessOpts...),
		config:  cfg,
	}
}

// Session returns the underlying command session.
func (u *Uploader) Session() *session.Session {
	return u.session
}

// State returns the progress of the current or last content transfer.
func (u *Uploader) State() State {
	return u.state
}

// Upload performs the complete transfer sequence:
//  1. Announce the file (name, size, digest, signature)
//  2. Send the content in blocks, each acknowledged by the device
//  3. Ask the Confirmer, if one is configured, before finalizing
//  4. Finalize the transfer
//
// Example:
//
//	info, _ := updater.FileInfoFor("keystone3.bin", firmware, signature)
//	err := up.Upload(ctx, info, firmware)
func (u *Uploader) Upload(ctx context.Context, info FileInfo, payload []byte) error {
	u.started = time.Now()

	if err := u.UploadMetadata(ctx, info); err != nil {
		return err
	}
	if err := u.UploadContent(ctx, payload); err != nil {
		return err
	}

	if u.config.Confirmer != nil {
		if err := u.config.Confirmer.Confirm(ctx, "File uploaded, finalize the transfer?"); err != nil {
			return fmt.Errorf("finalize: %w", err)
		}
	}

	if err := u.Finalize(ctx); err != nil {
		return err
	}

	u.reportProgress(Progress{
		Phase:       PhaseComplete,
		Offset:      u.state.Offset,
		TotalSize:   u.state.TotalSize,
		Percent:     100,
		ElapsedTime: time.Since(u.started),
	})

	u.logInfo("upload complete",
		"name", info.Name,
		"bytes", len(payload),
		"elapsed", time.Since(u.started).String(),
	)
	return nil
}

// UploadMetadata announces a file to the device and requires an acknowledgment.
func (u *Uploader) UploadMetadata(ctx context.Context, info FileInfo) error {
	payload, err := info.Encode()
	if err != nil {
		return err
	}

	u.reportProgress(Progress{
		Phase:     PhaseMetadata,
		TotalSize: uint64(info.Size),
	})

	fields, err := u.session.Exchange(ctx, protocol.ServiceFileTransfer, protocol.CmdFileTransferInfo, payload)
	if err != nil {
		return fmt.Errorf("upload metadata: %w", err)
	}
	if err := protocol.CheckAck(fields); err != nil {
		u.logError("file info rejected", "name", info.Name, "error", err)
		return fmt.Errorf("upload metadata: %w", err)
	}

	u.logInfo("file announced",
		"name", info.Name,
		"size", info.Size,
	)
	return nil
}

// UploadContent sends payload from offset zero.
func (u *Uploader) UploadContent(ctx context.Context, payload []byte) error {
	return u.ResumeContent(ctx, payload, 0)
}

// ResumeContent sends payload starting at offset, one block per content
// command. Each block must be acknowledged before the next is sent.
//
// On failure it returns a *TransferError whose Offset is the last committed
// offset; nothing is retried. The context is checked between blocks only.
func (u *Uploader) ResumeContent(ctx context.Context, payload []byte, offset uint64) error {
	total := uint64(len(payload))
	if total > math.MaxUint32 {
		return fmt.Errorf("payload too large: %d bytes", total)
	}
	if offset > total {
		return fmt.Errorf("resume offset %d past end of %d-byte payload", offset, total)
	}
	if u.started.IsZero() {
		u.started = time.Now()
	}

	u.state = State{TotalSize: total, Offset: offset}
	if total > 0 {
		u.state.LastReportedPercent = int(offset * 100 / total)
	}

	blockSize := uint64(u.config.BlockSize)
	for u.state.Offset < total {
		if err := ctx.Err(); err != nil {
			return u.transferError(err)
		}

		end := u.state.Offset + blockSize
		if end > total {
			end = total
		}

		if err := u.sendBlock(ctx, uint32(u.state.Offset), payload[u.state.Offset:end]); err != nil {
			u.logError("block failed",
				"offset", u.state.Offset,
				"error", err,
			)
			return u.transferError(err)
		}

		u.state.Offset = end
		u.logDebug("block committed",
			"offset", u.state.Offset,
			"total", total,
		)

		percent := int(u.state.Offset * 100 / total)
		if percent > u.state.LastReportedPercent+1 {
			u.state.LastReportedPercent = percent
			u.reportProgress(Progress{
				Phase:       PhaseContent,
				Offset:      u.state.Offset,
				TotalSize:   total,
				Percent:     percent,
				ElapsedTime: time.Since(u.started),
			})
		}
	}

	return nil
}

// sendBlock sends one content block and checks the acknowledgment.
func (u *Uploader) sendBlock(ctx context.Context, offset uint32, data []byte) error {
	offsetBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(offsetBytes, offset)

	payload := make([]byte, 0, len(data)+9)
	payload, err := protocol.AppendTLV(payload, protocol.TagFileOffset, offsetBytes)
	if err != nil {
		return err
	}
	payload, err = protocol.AppendTLV(payload, protocol.TagFileData, data)
	if err != nil {
		return err
	}

	fields, err := u.session.Exchange(ctx, protocol.ServiceFileTransfer, protocol.CmdFileTransferContent, payload)
	if err != nil {
		return err
	}
	return protocol.CheckAck(fields)
}

func (u *Uploader) transferError(err error) error {
	return &TransferError{
		Offset:    u.state.Offset,
		TotalSize: u.state.TotalSize,
		Err:       err,
	}
}

// Finalize tells the device the transfer is complete. The device acts on
// receipt; only a well-formed response frame is required.
func (u *Uploader) Finalize(ctx context.Context) error {
	u.reportProgress(Progress{
		Phase:     PhaseFinalize,
		Offset:    u.state.Offset,
		TotalSize: u.state.TotalSize,
		Percent:   percentOf(u.state.Offset, u.state.TotalSize),
	})

	fields, err := u.session.Exchange(ctx, protocol.ServiceFileTransfer, protocol.CmdFileTransferComplete, nil)
	if err != nil {
		return fmt.Errorf("finalize: %w", err)
	}

	if ack, err := protocol.ParseAck(fields); err == nil && !ack.OK() {
		u.logDebug("finalize answered with non-zero status", "code", ack.Code)
	}
	return nil
}

func percentOf(offset, total uint64) int {
	if total == 0 {
		return 100
	}
	return int(offset * 100 / total)
}

// reportProgress calls the progress callback if configured.
func (u *Uploader) reportProgress(progress Progress) {
	if u.config.ProgressCallback != nil {
		u.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (u *Uploader) logDebug(msg string, keysAndValues ...interface{}) {
	if u.config.Logger != nil {
		u.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (u *Uploader) logInfo(msg string, keysAndValues ...interface{}) {
	if u.config.Logger != nil {
		u.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (u *Uploader) logError(msg string, keysAndValues ...interface{}) {
	if u.config.Logger != nil {
		u.config.Logger.Error(msg, keysAndValues...)
	}
}
