package config

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the slog logger described by c. debug overrides the level.
func NewLogger(w io.Writer, c LogConfig, debug bool) *slog.Logger {
	level, err := ParseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.Format) == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
