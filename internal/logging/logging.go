// Package logging provides the structured logger threaded through
// partitions, evaluators, and storage backends. It mirrors the way
// Perkeep threads jsonconfig.Obj into constructors instead of reaching
// for package-level globals: every component that logs takes a *Logger
// (or falls back to a process default) rather than calling slog.Info
// directly.
package logging

import (
	"log/slog"
	"os"
	"sync"
)

// Logger wraps slog.Logger with the handful of fields every bitdex
// component tags its lines with.
type Logger struct {
	base *slog.Logger
}

var (
	defaultOnce sync.Once
	defaultLog  *Logger
)

// Default returns the process-wide fallback logger, writing JSON to
// stderr. Components should prefer an explicitly injected *Logger; this
// exists so library code never panics on a nil logger.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLog = New(slog.NewJSONHandler(os.Stderr, nil))
	})
	return defaultLog
}

// New wraps an arbitrary slog.Handler.
func New(h slog.Handler) *Logger {
	return &Logger{base: slog.New(h)}
}

// With returns a Logger that annotates every line with the given
// key/value pairs, e.g. l.With("partition", name).
func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return Default().With(args...)
	}
	return &Logger{base: l.base.With(args...)}
}

func (l *Logger) pick() *slog.Logger {
	if l == nil || l.base == nil {
		return Default().base
	}
	return l.base
}

func (l *Logger) Debug(msg string, args ...any) { l.pick().Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)   { l.pick().Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)   { l.pick().Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any)  { l.pick().Error(msg, args...) }

// Fallback logs a non-fatal condition named in spec.md §7: an index
// falling back to a sequential scan, or an adaptive histogram bin count
// that differs from the request. These never change a returned value.
func (l *Logger) Fallback(op, reason string, args ...any) {
	l.pick().Warn("non-fatal fallback", append([]any{"op", op, "reason", reason}, args...)...)
}
