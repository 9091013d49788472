package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforecast/internal/config"
)

func TestNewLogger_JSONWithTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(config.LoggingConfig{Level: "info", Format: "json", Output: "console"}, &buf)
	require.NoError(t, err)

	ctx := WithTraceID(context.Background(), "run-123")
	logger.InfoContext(ctx, "run started", slog.Int("segments", 4))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run started", entry["msg"])
	assert.Equal(t, "run-123", entry["trace_id"])
	assert.Equal(t, float64(4), entry["segments"])
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "forecast.log")
	var console bytes.Buffer

	logger, err := NewLogger(config.LoggingConfig{Level: "debug", Format: "json", Output: "both", FilePath: path}, &console)
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseLogFile() })

	logger.Debug("written twice")
	require.NoError(t, CloseLogFile())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written twice")
	assert.Contains(t, console.String(), "written twice")
}

func TestNewLogger_FileOutputWithoutPath(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Output: "file"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestRunContext(t *testing.T) {
	ctx, runID := NewRunContext(context.Background())
	assert.NotEmpty(t, runID)
	assert.Equal(t, runID, GetTraceID(ctx))

	assert.Equal(t, runID, GetTraceID(EnsureTraceID(ctx)))
	assert.NotEmpty(t, GetTraceID(EnsureTraceID(context.Background())))
	assert.Empty(t, GetTraceID(context.Background()))
}
