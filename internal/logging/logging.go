// Package logging provides the zerolog-backed Logger used by the session and
// updater packages.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/moffa90/go-fwlink/config"
)

const (
	EnvLogLevel     = "FWLINK_LOG_LEVEL"
	EnvLogTimestamp = "FWLINK_LOG_TIMESTAMP"
	EnvLogNoColor   = "FWLINK_LOG_NOCOLOR"
)

// Config controls the console output.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
}

// DefaultConfig logs at info level with timestamps.
func DefaultConfig() Config {
	return Config{Level: zerolog.InfoLevel, Timestamp: true}
}

// FromConfig converts the [log] section of a config file and applies the
// environment overrides.
func FromConfig(c config.LogConfig) Config {
	cfg := DefaultConfig()
	if lvl, ok := ParseLevel(c.Level); ok {
		cfg.Level = lvl
	}
	cfg.Timestamp = c.Timestamp
	cfg.NoColor = c.NoColor
	ApplyEnv(&cfg)
	return cfg
}

// ApplyEnv overrides cfg from FWLINK_LOG_* environment variables.
func ApplyEnv(cfg *Config) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// Logger adapts a zerolog.Logger to the key/value Logger interface.
type Logger struct {
	zl zerolog.Logger
}

// New returns a console logger writing to w.
//
// Example:
//
//	logger := logging.New(os.Stderr, logging.DefaultConfig())
//	up := updater.New(device, updater.WithLogger(logger))
func New(w io.Writer, cfg Config) *Logger {
	out := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    cfg.NoColor,
		TimeFormat: time.RFC3339,
	}
	if !cfg.Timestamp {
		out.PartsExclude = []string{zerolog.TimestampFieldName}
	}
	return Wrap(zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger())
}

// Wrap adapts an existing zerolog.Logger.
func Wrap(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.zl.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.zl.Info().Fields(keysAndValues).Msg(msg)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.zl.Error().Fields(keysAndValues).Msg(msg)
}
