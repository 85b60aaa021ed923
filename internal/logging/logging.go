// Package logging builds the structured loggers used across termmark.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"pkt.systems/pslog"
)

// Config configures a logger.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn or error.
	Level string
	// Format is "json" for structured output or "console" for humans.
	Format string
	// NoColor disables ANSI colours in console mode.
	NoColor bool
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
	}
}

// Options translates a Config into pslog options.
func Options(cfg Config) (pslog.Options, error) {
	opts := pslog.Options{
		NoColor:       cfg.NoColor,
		VerboseFields: true,
	}

	switch strings.ToLower(cfg.Format) {
	case "", "json", "structured":
		opts.Mode = pslog.ModeStructured
	case "console", "text":
		opts.Mode = pslog.ModeConsole
	default:
		return opts, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	switch strings.ToLower(cfg.Level) {
	case "trace":
		opts.MinLevel = pslog.TraceLevel
	case "debug":
		opts.MinLevel = pslog.DebugLevel
	case "", "info":
		opts.MinLevel = pslog.InfoLevel
	case "warn", "warning":
		opts.MinLevel = pslog.WarnLevel
	case "error":
		opts.MinLevel = pslog.ErrorLevel
	default:
		return opts, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	return opts, nil
}

// New creates a logger writing to w. A nil writer means os.Stderr.
func New(w io.Writer, cfg Config) (pslog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	return pslog.NewWithOptions(w, opts), nil
}

// Discard returns a logger that drops everything below error level and
// writes the rest nowhere.
func Discard() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{
		Mode:     pslog.ModeStructured,
		NoColor:  true,
		MinLevel: pslog.ErrorLevel,
	})
}

// Component returns l annotated with a component field.
func Component(l pslog.Logger, name string) pslog.Logger {
	if l == nil {
		l = Discard()
	}
	return l.With("component", name)
}
