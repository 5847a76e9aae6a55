package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Log output formats.
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatPretty = "pretty"
)

// Options configures New.
type Options struct {
	Format  string
	Level   string
	Writer  io.Writer
	NoColor bool
}

// ParseLevel maps debug, info, warn and error (case-insensitive) to a
// slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New builds a logger whose handler injects correlation values from the
// context of every record.
func New(opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", FormatText:
		inner = slog.NewTextHandler(w, hopts)
	case FormatJSON:
		inner = slog.NewJSONHandler(w, hopts)
	case FormatPretty:
		inner = NewPrettyHandler(w, level, opts.NoColor)
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	return slog.New(NewCorrelationHandler(inner)), nil
}
