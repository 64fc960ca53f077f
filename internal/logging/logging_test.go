package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-fwlink/config"
	"github.com/moffa90/go-fwlink/session"
)

var _ session.Logger = (*Logger)(nil)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw    string
		want   zerolog.Level
		wantOK bool
	}{
		{"", zerolog.InfoLevel, false},
		{"DEBUG", zerolog.DebugLevel, true},
		{" warn ", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"loud", zerolog.InfoLevel, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.raw)
		assert.Equal(t, tt.want, got, "raw=%q", tt.raw)
		assert.Equal(t, tt.wantOK, ok, "raw=%q", tt.raw)
	}
}

func TestLoggerWritesKeyValues(t *testing.T) {
	var buf bytes.Buffer
	l := Wrap(zerolog.New(&buf))

	l.Info("block committed", "offset", 4096, "total", 8192)
	l.Error("block failed", "error", errors.New("ack 9"))
	l.Debug("odd", "lonely")

	out := buf.String()
	assert.Contains(t, out, `"message":"block committed"`)
	assert.Contains(t, out, `"offset":4096`)
	assert.Contains(t, out, `"total":8192`)
	assert.Contains(t, out, `"error":"ack 9"`)
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"message":"odd"`)
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Config{Level: zerolog.InfoLevel, NoColor: true})

	l.Debug("hidden")
	l.Info("shown", "name", "keystone3.bin")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "keystone3.bin")
}

func TestFromConfigAndEnv(t *testing.T) {
	cfg := FromConfig(config.LogConfig{Level: "error", NoColor: false, Timestamp: true})
	assert.Equal(t, zerolog.ErrorLevel, cfg.Level)
	assert.True(t, cfg.Timestamp)

	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogNoColor, "true")
	t.Setenv(EnvLogTimestamp, "0")
	cfg = FromConfig(config.LogConfig{Level: "error", Timestamp: true})
	assert.Equal(t, zerolog.DebugLevel, cfg.Level)
	assert.True(t, cfg.NoColor)
	assert.False(t, cfg.Timestamp)

	t.Setenv(EnvLogLevel, "nonsense")
	cfg = DefaultConfig()
	ApplyEnv(&cfg)
	require.Equal(t, zerolog.InfoLevel, cfg.Level)
}
