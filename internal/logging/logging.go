// Package logging builds the process logger. Components log through log/slog;
// records are rendered by a charmbracelet/log handler.
package logging

import (
	"io"
	"log/slog"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/loqalabs/loqa-interpret/internal/config"
)

// New returns a slog logger writing to w with the configured level and format.
// Unknown levels fall back to info.
func New(w io.Writer, cfg config.TelemetryConfig) *slog.Logger {
	level, err := charmlog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = charmlog.InfoLevel
	}
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       formatter(cfg.LogFormat),
	})
	return slog.New(handler)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func formatter(format string) charmlog.Formatter {
	switch format {
	case "text":
		return charmlog.TextFormatter
	case "logfmt":
		return charmlog.LogfmtFormatter
	default:
		return charmlog.JSONFormatter
	}
}
