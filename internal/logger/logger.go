// Package logger builds the zerolog loggers used across the binaries and carries them
// through contexts.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type contextKey struct{}

var fallback atomic.Pointer[zerolog.Logger]

// New creates a console logger for interactive use.
func New() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Caller().Logger()
}

// NewWithWriter creates a JSON logger writing to w.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

// Options controls the logger built by NewWithOptions.
type Options struct {
	Level string // debug, info, warn or error; empty means info
	JSON  bool   // raw JSON lines instead of the console writer
}

// NewWithOptions creates a logger honoring the configured level and output format and
// makes it the fallback returned by FromContext.
func NewWithOptions(opts Options) zerolog.Logger {
	var log zerolog.Logger
	if opts.JSON {
		log = NewWithWriter(os.Stdout)
	} else {
		log = New()
	}
	log = log.Level(ParseLevel(opts.Level))
	SetDefault(log)
	return log
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// SetDefault replaces the logger FromContext returns for contexts without one.
func SetDefault(log zerolog.Logger) {
	fallback.Store(&log)
}

// WithContext adds the logger to the context
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the context's logger, the default set by SetDefault, or a console
// logger, in that order.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(zerolog.Logger); ok {
		return logger
	}
	if l := fallback.Load(); l != nil {
		return *l
	}
	return New()
}
