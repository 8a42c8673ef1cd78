// Package observability builds the structured logger and Prometheus metrics
// shared by the pipeline and the CLI.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// NewLogger returns a slog logger writing to w.
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidateLogConfig rejects unknown level or format names.
func ValidateLogConfig(cfg LogConfig) error {
	switch strings.ToLower(cfg.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return nil
}
