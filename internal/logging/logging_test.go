package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{" info ", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(Options{Level: "info", Format: FormatJSON}, &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Warn("page replaced by placeholder", zap.Int("page", 2), zap.String("component", "page"))
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "page replaced by placeholder", entry["message"])
	assert.EqualValues(t, 2, entry["page"])
	assert.Equal(t, "page", entry["component"])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T`, entry["timestamp"])
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(Options{Level: "debug"}, &buf)
	require.NoError(t, err)

	logger.Debug("document opened", zap.Int("pages", 3))
	require.NoError(t, logger.Sync())
	assert.Contains(t, buf.String(), "debug")
	assert.Contains(t, buf.String(), "document opened")
}

func TestNewWithWriter_UnknownFormat(t *testing.T) {
	_, err := NewWithWriter(Options{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNewWithWriter_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faithful-pdf.log")
	var buf bytes.Buffer
	logger, err := NewWithWriter(Options{Level: "info", File: path}, &buf)
	require.NoError(t, err)

	logger.Info("extraction finished", zap.String("file", "a.pdf"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"file":"a.pdf"`)
	assert.Contains(t, buf.String(), "extraction finished")
}

func TestRotatorDefaults(t *testing.T) {
	r := rotator(Options{File: "x.log"})
	assert.Equal(t, DefaultMaxSizeMB, r.MaxSize)
	assert.Equal(t, DefaultMaxBackups, r.MaxBackups)
	assert.Equal(t, DefaultMaxAgeDays, r.MaxAge)
	assert.True(t, r.Compress)
}
