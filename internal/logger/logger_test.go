package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		want  slog.Level
		valid bool
	}{
		{"debug", slog.LevelDebug, true},
		{" INFO ", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"", 0, false},
		{"verbose", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.valid, ok, "ParseLevel(%q)", tt.in)
		if tt.valid {
			assert.Equal(t, tt.want, got, "ParseLevel(%q)", tt.in)
		}
	}
}

func TestNewWritesAtLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Enabled: true, Level: slog.LevelWarn, Output: &buf})

	l.Info("dropped")
	l.Warn("kept", "k", 1)

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
	assert.Contains(t, out, "k=1")
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Enabled: true, Output: &buf, JSON: true})
	l.Info("cycle", "full", true)
	require.Contains(t, buf.String(), `"full":true`)
}

func TestFromEnvUnset(t *testing.T) {
	t.Setenv(EnvVar, "")
	l := FromEnv()
	require.NotNil(t, l)
	assert.False(t, l.Enabled(t.Context(), slog.LevelError))
}

func TestFromEnvDebug(t *testing.T) {
	t.Setenv(EnvVar, "debug")
	l := FromEnv()
	assert.True(t, l.Enabled(t.Context(), slog.LevelDebug))
}
