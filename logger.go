// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

package heroine

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/tomWhiting/heroine-graph/internal/gpu"
	"github.com/tomWhiting/heroine-graph/internal/layout"
	"github.com/tomWhiting/heroine-graph/internal/sim"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for heroine and all its sub-packages.
// By default, heroine produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by heroine:
//   - [slog.LevelDebug]: internal diagnostics (buffer sizes, dispatch counts)
//   - [slog.LevelInfo]: important lifecycle events (device selected, algorithm switched)
//   - [slog.LevelWarn]: non-fatal issues (software fallback, readback failure)
//   - [slog.LevelError]: fatal simulation stops (corrupted positions)
//
// Example:
//
//	// Enable info-level logging to stderr:
//	heroine.SetLogger(slog.Default())
//
//	// Enable debug-level logging for full diagnostics:
//	heroine.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	gpu.SetLogger(l)
	sim.SetLogger(l)
	layout.SetLogger(l)
}

// Logger returns the current logger used by heroine.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
