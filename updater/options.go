package updater

import "github.com/moffa90/go-fwlink/protocol"

// MaxBlockSize is the largest content block a single TLV record can carry.
const MaxBlockSize = protocol.MaxValueLength

// Config holds the uploader configuration.
type Config struct {
	// ProgressCallback is called during uploads to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// Confirmer gates finalization and bring-up steps (optional for uploads,
	// required for bring-up images)
	Confirmer Confirmer

	// BlockSize is the file data size per content command
	// Default is 4096 bytes
	BlockSize int

	// UnitSize is the primitive transport unit
	// Default is 64 bytes (one USB bulk packet)
	UnitSize int
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		BlockSize: protocol.DefaultBlockSize,
		UnitSize:  protocol.UnitSize,
	}
}

// Option is a functional option for configuring the Uploader.
type Option func(*Config)

// WithProgressCallback sets a callback function to track upload progress.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the uploader and its session.
//
// Example:
//
//	up := updater.New(device, updater.WithLogger(logging.New(os.Stderr, "debug")))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithConfirmer sets the operator confirmation hook.
func WithConfirmer(confirmer Confirmer) Option {
	return func(c *Config) {
		c.Confirmer = confirmer
	}
}

// WithBlockSize sets the file data size per content command.
// Values outside 1..MaxBlockSize are ignored.
//
// Example:
//
//	up := updater.New(device, updater.WithBlockSize(2048))
func WithBlockSize(size int) Option {
	return func(c *Config) {
		if size > 0 && size <= MaxBlockSize {
			c.BlockSize = size
		}
	}
}

// WithUnitSize sets the primitive transport unit size.
func WithUnitSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.UnitSize = size
		}
	}
}
