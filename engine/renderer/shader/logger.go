package shader

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled returns false so callers skip formatting.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the logger shared by the shader build packages.
// By default nothing is logged. Passing nil restores the silent default.
//
// Log levels:
//   - [slog.LevelDebug]: per-stage steps (preprocess, compile, cache hits)
//   - [slog.LevelInfo]: pipeline results
//   - [slog.LevelWarn]: compiler warnings, visibility bits that cannot be exported
//
// SetLogger is safe for concurrent use.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
