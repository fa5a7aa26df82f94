package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWithSink_ProductionJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithSink("info", "production", zapcore.AddSync(&buf))
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("sweep done", zap.Int("count", 3))
	require.NoError(t, log.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "debug is below the configured level")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "sweep done", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.EqualValues(t, 3, entry["count"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewWithSink_DevelopmentConsole(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithSink("DEBUG", "development", zapcore.AddSync(&buf))
	require.NoError(t, err)

	log.Debug("visible")
	require.NoError(t, log.Sync())
	out := buf.String()
	assert.Contains(t, out, "visible")
	assert.False(t, strings.HasPrefix(strings.TrimSpace(out), "{"), "console encoder, not JSON")
}

func TestNewWithSink_Level(t *testing.T) {
	_, err := NewWithSink("loud", "", zapcore.AddSync(&bytes.Buffer{}))
	assert.Error(t, err)

	log, err := NewWithSink("", "", zapcore.AddSync(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}
