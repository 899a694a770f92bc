// Package logger builds the slog loggers used by the collector and the CLI.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvVar selects the log level when no logger is injected (debug, info, warn, error).
const EnvVar = "GCEXT_LOG"

// Options configures a logger.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Level   slog.Level // Minimum log level. Default: LevelInfo when enabled
	Output  io.Writer  // Destination. Default: os.Stderr
	JSON    bool       // Use the JSON handler instead of the text handler
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// New builds a logger from opts.
func New(opts Options) *slog.Logger {
	if !opts.Enabled {
		return Discard()
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	level := opts.Level
	if level == 0 {
		level = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: level}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(out, hopts))
	}
	return slog.New(slog.NewTextHandler(out, hopts))
}

// FromEnv returns a stderr logger at the level named by GCEXT_LOG, or a
// discarding logger when the variable is unset or unrecognised.
func FromEnv() *slog.Logger {
	level, ok := ParseLevel(os.Getenv(EnvVar))
	if !ok {
		return Discard()
	}
	return New(Options{Enabled: true, Level: level})
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "1", "true":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}
