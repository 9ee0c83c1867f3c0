package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{" INFO ", zapcore.InfoLevel},
		{"Warning", zapcore.WarnLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	} {
		t.Run(tc.in, func(t *testing.T) {
			require.Equal(t, tc.want, ParseLevel(tc.in, zapcore.InfoLevel))
		})
	}
}

func TestNewWithWritersTeesConsoleAndFile(t *testing.T) {
	var console, file bytes.Buffer
	log := NewWithWriters(Config{Level: "info"}, zapcore.AddSync(&console), zapcore.AddSync(&file))

	log.Debug("hidden")
	log.Info("swapchain rebuilt", zap.Uint64("generation", 3))
	require.NoError(t, log.Sync())

	require.NotContains(t, file.String(), "hidden")
	require.Contains(t, console.String(), "swapchain rebuilt")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(file.String())), &entry))
	require.Equal(t, "swapchain rebuilt", entry["msg"])
	require.Equal(t, "info", entry["level"])
	require.EqualValues(t, 3, entry["generation"])
	require.Contains(t, entry, "time")
}

func TestDevelopmentDefaultsToDebug(t *testing.T) {
	var console bytes.Buffer
	log := NewWithWriters(Config{Development: true}, zapcore.AddSync(&console), nil)
	log.Debug("acquired image differs from frame slot")
	require.Contains(t, console.String(), "acquired image differs from frame slot")
	require.Contains(t, console.String(), "DEBUG")
}

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "umisu.log")
	log, err := New(Config{Level: "warn", File: path})
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("validation layer not available")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "validation layer not available")
	require.NotContains(t, string(data), "dropped")
}

func TestFileWriterDefaults(t *testing.T) {
	require.Equal(t, DefaultMaxSizeMB, orDefault(0, DefaultMaxSizeMB))
	require.Equal(t, 7, orDefault(7, DefaultMaxSizeMB))
	require.Equal(t, DefaultMaxBackups, orDefault(-1, DefaultMaxBackups))
}
