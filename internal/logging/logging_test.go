package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(cfg Config, buf *bytes.Buffer) *Logger {
	var level slog.Level
	switch cfg.Level {
	case LevelDebug:
		level = slog.LevelDebug
	case LevelWarn:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == FormatJSON {
		handler = slog.NewJSONHandler(buf, opts)
	} else {
		handler = slog.NewTextHandler(buf, opts)
	}
	return &Logger{Logger: slog.New(handler), config: cfg}
}

func TestNewWithDefaults(t *testing.T) {
	logger, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(Config{Level: LevelInfo, Format: FormatJSON}, &buf)

	logger.InfoScan("scan started", "scan-123", "targets", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "scan started", entry["msg"])
	assert.Equal(t, "scan-123", entry["scan_id"])
	assert.Equal(t, float64(3), entry["targets"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(Config{Level: LevelWarn, Format: FormatText}, &buf)

	logger.Info("should be dropped")
	assert.Empty(t, buf.String())

	logger.Warn("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(Config{Level: LevelInfo, Format: FormatText}, &buf)

	logger.WithComponent("orchestrator").WithScanID("abc").Info("running")

	out := buf.String()
	assert.Contains(t, out, "component=orchestrator")
	assert.Contains(t, out, "scan_id=abc")
}

func TestDefaultLoggerSwap(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	var buf bytes.Buffer
	SetDefault(newBufferLogger(Config{Level: LevelDebug, Format: FormatText}, &buf))

	Debug("swapped logger in use")
	assert.Contains(t, buf.String(), "swapped logger in use")
}
