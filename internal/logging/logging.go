// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/MatusOllah/slogcolor"
)

// ParseLevel maps debug, info, warn(ing) and error to a slog level. Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewHandler returns a handler writing to w in format (text, json or color).
func NewHandler(w io.Writer, format, level string) slog.Handler {
	lvl := ParseLevel(level)
	switch strings.ToLower(format) {
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	case "color":
		opts := *slogcolor.DefaultOptions
		opts.Level = lvl
		return slogcolor.NewHandler(w, &opts)
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
}

// Setup installs a logger built by NewHandler as the slog default and returns it.
func Setup(w io.Writer, format, level string) *slog.Logger {
	logger := slog.New(NewHandler(w, format, level))
	slog.SetDefault(logger)
	return logger
}
