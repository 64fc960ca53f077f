package updater

import (
	"context"
	"errors"
	"time"

	"github.com/moffa90/go-fwlink/session"
)

// Transfer phases reported through Progress.Phase.
const (
	PhaseMetadata = "metadata"
	PhaseContent  = "content"
	PhaseFinalize = "finalize"
	PhaseComplete = "complete"
	PhaseBringup  = "bringup"
)

// Progress contains information about the transfer progress.
// Passed to ProgressCallback during uploads.
type Progress struct {
	// Phase describes the current operation phase:
	//   "metadata" - Announcing the file
	//   "content"  - Sending file blocks
	//   "finalize" - Completing the transfer
	//   "complete" - Operation completed successfully
	//   "bringup"  - Sending a bring-up image
	Phase string

	// Offset is the number of bytes committed by the device
	Offset uint64

	// TotalSize is the size of the payload being sent
	TotalSize uint64

	// Percent is the integer completion percentage (0 to 100)
	Percent int

	// ElapsedTime is the time elapsed since the upload started
	ElapsedTime time.Duration
}

// ProgressCallback is called during uploads to report progress.
// During the content phase it fires whenever the integer percentage has grown
// by more than one point since the last report.
// Implementations should return quickly to avoid blocking the transfer.
//
// Example:
//
//	up := updater.New(device,
//	    updater.WithProgressCallback(func(p updater.Progress) {
//	        fmt.Printf("[%s] %d%% (%d/%d bytes)\n", p.Phase, p.Percent, p.Offset, p.TotalSize)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is an optional logging interface shared with the session package.
type Logger = session.Logger

// ErrNotConfirmed is returned by a Confirmer when the operator declines.
var ErrNotConfirmed = errors.New("operation not confirmed")

// Confirmer gates steps that need an operator's go-ahead. Confirm blocks until
// the operator answers and returns nil to proceed.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) error
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(ctx context.Context, prompt string) error

// Confirm calls f(ctx, prompt).
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) error {
	return f(ctx, prompt)
}
