//go:build !nogpu

package gpu

import (
	"context"
	"log/slog"
)

// discard drops every record. It backs executors built without a logger.
type discard struct{}

func (discard) Enabled(context.Context, slog.Level) bool  { return false }
func (discard) Handle(context.Context, slog.Record) error { return nil }
func (discard) WithAttrs([]slog.Attr) slog.Handler        { return discard{} }
func (discard) WithGroup(string) slog.Handler             { return discard{} }

var silent = slog.New(discard{})

// log returns the executor's logger, tagged with the backend name.
// Safe to call while another goroutine runs SetLogger.
func (e *Executor) log() *slog.Logger {
	if l := e.logger.Load(); l != nil {
		return l
	}
	return silent
}

// SetLogger replaces the executor's logger. Nil restores silence.
func (e *Executor) SetLogger(l *slog.Logger) {
	if l == nil {
		e.logger.Store(nil)
		return
	}
	e.logger.Store(l.With("backend", Name))
}
