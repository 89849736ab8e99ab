// Package obslog provides structured logging (zerolog) and metrics
// (prometheus client_golang) for Core B, the same way
// certenIO-certen-validator's services instrument their request paths.
// Core A keeps canonical-chisel's own SetLogger/logf convention
// (internal/fsutil, internal/packfs, internal/update). Nothing here is a
// package-level logger: a *Logger is constructed by its user. No package
// of this module, retrieval and generation included, calls obslog.
package obslog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger scoped to one component ("retrieval",
// "generation", "update").
type Logger struct {
	zl zerolog.Logger
}

// New builds a Logger writing structured JSON lines to w (os.Stderr in
// production, a buffer in tests).
func New(w io.Writer, component string) *Logger {
	if w == nil {
		w = os.Stderr
	}
	zl := zerolog.New(w).With().
		Timestamp().
		Str("component", component).
		Logger()
	return &Logger{zl: zl}
}

func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }
func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }

// With returns a child Logger with an additional field attached to every
// subsequent event, e.g. obslog.With(l, "run_id", runID).
func With(l *Logger, key string, value any) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// Duration is a small helper for the common "operation finished, log how
// long it took" pattern.
func Duration(start time.Time) time.Duration { return time.Since(start) }
