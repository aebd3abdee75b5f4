// Package log provides the structured logging interface used across linfit.
//
// The interface is slog-compatible so that the backend can be swapped without
// touching callers. The default backend is zerolog (see zerolog.go); tests use
// the in-memory TestLogger.
//
// Example usage:
//
//	logger := log.GetLogger().With(
//	    log.SessionIDKey, id,
//	    log.ComponentKey, "training",
//	)
//	logger.Info("Training started",
//	    log.SamplesKey, 1000,
//	    log.LearningRateKey, 0.01,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are passed as alternating key/value pairs. If the first field of
// Error is an error value, implementations attach it (and its stack trace,
// when available) under the "error" key.
type Logger interface {
	// Debug logs detailed diagnostic information, e.g. per-epoch progress.
	Debug(msg string, fields ...any)

	// Info logs general operational information.
	Info(msg string, fields ...any)

	// Warn logs potentially problematic situations that do not stop the run.
	Warn(msg string, fields ...any)

	// Error logs error conditions.
	//
	// Example:
	//   logger.Error("Training diverged",
	//       err,
	//       log.EpochKey, 42,
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
