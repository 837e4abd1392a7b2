package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/filearchive/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for name, want := range tests {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewWritesJSONToStdoutAndFile(t *testing.T) {
	var stdout bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "archive.log")
	logger, closer, err := New(config.LoggingConfig{Level: "info", File: file, MaxSizeMB: 1, MaxBackups: 2}, &stdout)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("Entry archived.", "contentHash", "ABC")
	require.NoError(t, closer.Close())

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &record))
	assert.Equal(t, "Entry archived.", record["msg"])
	assert.Equal(t, "ABC", record["contentHash"])

	written, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, stdout.String(), string(written))
}

func TestNewWithoutFile(t *testing.T) {
	var stdout bytes.Buffer
	logger, closer, err := New(config.LoggingConfig{Level: "warn"}, &stdout)
	require.NoError(t, err)
	logger.Info("dropped")
	assert.Empty(t, stdout.String())
	assert.NoError(t, closer.Close())
}
