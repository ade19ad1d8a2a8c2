// Package logging builds the slog loggers used across the driver.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
)

// Component identifies a subsystem for log filtering.
type Component string

// Driver component identifiers.
const (
	ComponentSensor Component = "sensor"
	ComponentLine   Component = "line"
	ComponentAPI    Component = "api"
	ComponentCmd    Component = "cmd"
)

// Format specifies the output format for logging.
type Format int

// Log format options.
const (
	FormatText Format = iota // Text format (default)
	FormatJSON               // JSON format
)

var (
	// ErrUnknownFormat is returned by ParseFormat.
	ErrUnknownFormat = errors.New("unknown log format")
	// ErrUnknownLevel is returned by ParseLevel.
	ErrUnknownLevel = errors.New("unknown log level")
)

// ParseFormat accepts "text" and "json". The empty string means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, errors.Wrapf(ErrUnknownFormat, "%q", s)
}

// ParseLevel accepts debug, info, warn and error. The empty string means
// info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.Wrapf(ErrUnknownLevel, "%q", s)
}

// New creates a logger writing to w in the given format at level.
func New(w io.Writer, format Format, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts))
	default:
		return slog.New(slog.NewTextHandler(w, opts))
	}
}

// For returns l tagged with the component.
func For(l *slog.Logger, c Component) *slog.Logger {
	return l.With("component", string(c))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
