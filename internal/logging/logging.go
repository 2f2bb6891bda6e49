// Package logging provides structured logging helpers shared by the gateway,
// its readers and the CLI.
//
// Loggers are injected, never global. Each component scopes the logger it
// receives once, at construction time:
//
//	logger = logging.Default(logger).With("component", "qc")
//
// Output format, level and destination are decided in main() only.
// Components never call slog.SetDefault.
//
// Log points sit at lifecycle boundaries (reader built, view computed,
// dataset flagged), not inside per-value loops.
package logging

import (
	"context"
	"log/slog"
)

// discardHandler is a handler that discards all log records.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns logger when non-nil and a discard logger otherwise.
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}
