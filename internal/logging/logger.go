// Package logging wraps log/slog with a small context-aware convenience
// layer, following the same shape the rest of the stack uses for
// structured logging.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type runIDKey struct{}

// WithRunID attaches a pipeline-run id to ctx so downstream log calls can
// correlate their output to one poller or clustering invocation.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

func runIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey{}).(string); ok {
		return v
	}
	return ""
}

// Logger wraps *slog.Logger with context-aware helpers.
type Logger struct {
	inner *slog.Logger
}

// New builds a Logger. format is "json" or "text"; level is parsed via
// ParseLevel and defaults to info on an unrecognized value.
func New(level, format string) *Logger {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(os.Stdout, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	}

	return &Logger{inner: slog.New(handler)}
}

// ParseLevel maps a config string to a slog.Level, defaulting to Info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithContext returns a logger enriched with the run id (if any) carried on
// ctx, for attaching to every subsequent call in this request/run scope.
func (l *Logger) WithContext(ctx context.Context) *slog.Logger {
	if runID := runIDFromContext(ctx); runID != "" {
		return l.inner.With("run_id", runID)
	}
	return l.inner
}

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Debug(msg, args...)
}

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Info(msg, args...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Warn(msg, args...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Error(msg, args...)
}

// SetDefault installs l's handler as the process-wide slog default, for
// packages that log via the package-level slog functions.
func (l *Logger) SetDefault() {
	slog.SetDefault(l.inner)
}
