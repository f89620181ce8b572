package docdb

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger is a slog.Logger carrying the attribute names used across docdb.
type Logger struct {
	*slog.Logger
}

// NewLogger wraps handler. A nil handler logs text at info level to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		return NewTextLogger(slog.LevelInfo)
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger logs JSON lines to stderr at or above level.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger logs key=value lines to stderr at or above level.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger discards everything.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithK tags subsequent records with the requested result count.
func (l *Logger) WithK(k int) *Logger { return l.with("k", k) }

// WithSource tags subsequent records with the name the index was loaded from.
func (l *Logger) WithSource(name string) *Logger { return l.with("source", name) }

// LogLoad records the outcome of decoding an index blob.
func (l *Logger) LogLoad(ctx context.Context, bytes, rows, dimension int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index load failed", "bytes", bytes, "elapsed", elapsed, "error", err)
		return
	}
	l.InfoContext(ctx, "index loaded", "bytes", bytes, "rows", rows, "dimension", dimension, "elapsed", elapsed)
}

// LogSearch records a top-K query. Successful searches log at debug level.
func (l *Logger) LogSearch(ctx context.Context, k, found int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed", "k", k, "error", err)
		return
	}
	l.DebugContext(ctx, "search completed", "k", k, "results", found)
}

// LogFetch records a fetch batch. Partial failure is a warning since the
// batch itself still succeeds.
func (l *Logger) LogFetch(ctx context.Context, count, failed int) {
	if failed == 0 {
		l.DebugContext(ctx, "fetch completed", "count", count)
		return
	}
	l.WarnContext(ctx, "fetch completed with failures", "total", count, "failed", failed, "success", count-failed)
}
