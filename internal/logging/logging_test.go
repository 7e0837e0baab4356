package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelWarn)

	log.Info("hidden")
	log.Warn("turn rolled back", "error", errors.New("boom"), "backend", "coze")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "turn rolled back")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "backend=coze")
	assert.NotContains(t, out, "\x1b[", "non-terminal writers get no colour")
}

func TestOpenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floatchat.log")

	log, closeFn, err := Open(path, slog.LevelDebug)
	require.NoError(t, err)
	log.Debug("first")
	require.NoError(t, closeFn())

	log, closeFn, err = Open(path, slog.LevelDebug)
	require.NoError(t, err)
	log.Debug("second")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first")
	assert.Contains(t, string(data), "second")
}

func TestSetup(t *testing.T) {
	_, _, err := Setup("loud", "")
	assert.Error(t, err)

	log, closeFn, err := Setup("info", "")
	require.NoError(t, err)
	assert.NotNil(t, log)
	assert.NoError(t, closeFn())
}

func TestDiscard(t *testing.T) {
	log := Discard()
	assert.False(t, log.Enabled(t.Context(), slog.LevelError))
}
