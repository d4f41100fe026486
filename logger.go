package fbmirror

import (
	"context"
	"log/slog"
)

// nopHandler is a slog.Handler that silently discards all log records. The
// Enabled method returns false so callers skip message formatting entirely,
// making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// nopLogger returns a logger that silently discards all output, the default
// when Opts.Logger is nil.
func nopLogger() *slog.Logger {
	return slog.New(nopHandler{})
}
