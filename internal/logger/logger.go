// Package logger constructs the process-wide zerolog loggers and
// carries them through contexts.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ContextKey is the key type under which loggers travel in a context.
type ContextKey string

// LoggerKey is the context key holding the request-scoped logger.
const LoggerKey ContextKey = "logger"

// New returns the default logger: human-readable console output on
// stdout with RFC 3339 timestamps.
func New() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

// NewWithWriter returns a JSON logger writing to w. Tests use it to
// capture or discard output.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// WithContext returns a child context carrying the logger.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext returns the logger stored in ctx, or the default logger
// when none was attached.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return New()
}
