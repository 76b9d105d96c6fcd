// Package logging provides structured logging for divrecon using zerolog.
//
// Console output is used when stderr is a terminal, JSON otherwise or when
// LOG_FORMAT=json is set. Components attach a "component" field:
//
//	log := logging.Component("ingestion")
//	log.Info().Str("path", path).Int("rows", n).Msg("Loaded source file")
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var defaultLogger = createDefaultLogger()

// Nop discards everything. Tests use it to keep output quiet.
var Nop = zerolog.Nop()

func createDefaultLogger() zerolog.Logger {
	level := ParseLevel(os.Getenv("LOG_LEVEL"))
	zerolog.SetGlobalLevel(level)

	if isatty() && os.Getenv("LOG_FORMAT") != "json" {
		return NewConsole(os.Stderr)
	}
	return NewJSON(os.Stderr)
}

// Default returns the process-wide logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
}

// New creates a timestamped logger writing JSON to w.
func New(w io.Writer) zerolog.Logger {
	return NewJSON(w)
}

// NewJSON creates a timestamped logger writing one JSON object per line.
func NewJSON(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).Level(zerolog.GlobalLevel()).With().Timestamp().Logger()
}

// NewConsole creates a human-readable logger. NO_COLOR disables colors.
func NewConsole(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	cw := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.Kitchen,
		NoColor:    os.Getenv("NO_COLOR") != "",
	}
	return zerolog.New(cw).Level(zerolog.GlobalLevel()).With().Timestamp().Logger()
}

// SetLevel changes the global level. Unknown names fall back to info.
func SetLevel(name string) {
	level := ParseLevel(name)
	zerolog.SetGlobalLevel(level)
	defaultLogger = defaultLogger.Level(level)
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(name string) zerolog.Level {
	if name == "" {
		if os.Getenv("DEBUG") != "" {
			return zerolog.DebugLevel
		}
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Component returns a child of the default logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return defaultLogger.With().Str("component", name).Logger()
}

type contextKey int

const loggerKey contextKey = iota

// WithLogger stores a logger in ctx.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return Default()
	}
	if logger, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok && logger != nil {
		return logger
	}
	return Default()
}

func isatty() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
