package main

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger returns a structured slog.Logger with the given level. format is
// "json" (default) or "text".
func NewLogger(w io.Writer, level slog.Leveler, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
