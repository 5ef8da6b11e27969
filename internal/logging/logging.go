// Package logging wraps log/slog with the asset store's one rule: secret material,
// AAD bytes, and key aliases never reach a log record. Callers pass already-redacted
// fields; this package does not attempt to scrub arbitrary values.
package logging

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

var (
	base     *slog.Logger
	initOnce sync.Once
)

// Config controls the process-wide base logger.
type Config struct {
	Level  slog.Level
	Output *os.File
}

// Init installs the process-wide base logger. Safe to call once at startup; later
// calls are no-ops so tests and the service entrypoint can both call it.
func Init(cfg Config) {
	initOnce.Do(func() {
		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}
		handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: cfg.Level})
		base = slog.New(handler)
	})
}

func root() *slog.Logger {
	if base == nil {
		Init(Config{Level: slog.LevelInfo})
	}
	return base
}

// For returns a logger tagged with component, mirroring per-package loggers in the
// teacher codebase's pkg/logger.
func For(component string) *slog.Logger {
	return root().With(slog.String("component", component))
}

// WithTrace attaches a request-correlation id (see internal/dispatch) to a logger.
func WithTrace(l *slog.Logger, traceID string) *slog.Logger {
	return l.With(slog.String("trace_id", traceID))
}

type ctxKey struct{}

// IntoContext stashes a logger in ctx for handlers that don't thread one explicitly.
func IntoContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger stashed by IntoContext, falling back to a
// generic component logger.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return For("unknown")
}
