package grove

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled returns false so callers skip
// formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the package logger. By default grove produces no log
// output. Pass nil to restore the silent default. Safe for concurrent use.
//
// Log levels used by grove:
//   - [slog.LevelDebug]: skipped injections, asset progress, hook timings
//   - [slog.LevelInfo]: scene load and teardown
//   - [slog.LevelWarn]: duplicate type registration, font load timeouts
//   - [slog.LevelError]: panics recovered from Tick and lifecycle hooks
//
// Example:
//
//	grove.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current package logger. Sub-packages call this to share
// the same configuration.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
