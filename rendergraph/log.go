// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every log record; Enabled returns false
// so the caller skips message formatting entirely.
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

// SetLogger configures the logger used by package rendergraph.
// By default the package produces no log output.
//
// Log levels used by this package:
//   - [slog.LevelInfo]: pool eviction sweeps on NewFrame
//   - [slog.LevelWarn]: profiler timestamp slots exhausted for
//     a frame
//
// No Debug-level records are produced.
//
// SetLogger is safe for concurrent use; pass nil to disable
// logging again.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

func logger() *slog.Logger { return loggerPtr.Load() }
