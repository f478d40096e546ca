// Package pplog centralizes the runtime's structured logging setup so
// every binary (cmd/pplrun and its subcommands) gets the same handler
// configuration instead of each wiring log/slog by hand.
package pplog

import (
	"io"
	"log/slog"
	"os"
)

// Format selects the slog.Handler a Logger is built with.
type Format int

const (
	// JSON is the production format: one JSON object per line, the
	// shape a log aggregator expects.
	JSON Format = iota
	// Text is a human-readable key=value format for interactive
	// reading.
	Text
)

// Options configures New.
type Options struct {
	Format Format
	Level  slog.Level
	Output io.Writer
}

// New builds a slog.Logger per opts. A zero Options value produces a
// JSON logger at Info level writing to stderr, the default a
// long-running server process wants.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	switch opts.Format {
	case Text:
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	default:
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	}
	return slog.New(handler)
}

// Default returns a JSON logger at Info level writing to stderr.
func Default() *slog.Logger {
	return New(Options{})
}
