package vecflat

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger is the structured logger used by an Index. Field names are stable
// so log pipelines can key on them: op, count, k, results, bytes, target,
// source, dimension, error.
type Logger struct {
	*slog.Logger
}

// NewLogger wraps handler. A nil handler logs text at info level to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger logs JSON lines to stderr at level and above.
func NewJSONLogger(level slog.Level) *Logger {
	return newStreamLogger(os.Stderr, level, true)
}

// NewTextLogger logs key=value lines to stderr at level and above.
func NewTextLogger(level slog.Level) *Logger {
	return newStreamLogger(os.Stderr, level, false)
}

func newStreamLogger(w io.Writer, level slog.Level, json bool) *Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return NewLogger(slog.NewJSONHandler(w, opts))
	}
	return NewLogger(slog.NewTextHandler(w, opts))
}

// NoopLogger discards everything. It is the default.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithDimension tags every record with the index dimension.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{Logger: l.With("dimension", dim)}
}

// outcome logs a failed op at error level with err, and a successful op at
// okLevel with attrs.
func (l *Logger) outcome(ctx context.Context, okLevel slog.Level, op string, err error, attrs ...slog.Attr) {
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
		l.LogAttrs(ctx, slog.LevelError, op+" failed", attrs...)
		return
	}
	l.LogAttrs(ctx, okLevel, op+" completed", attrs...)
}

// LogAdd records an AddVectors call. firstID is the ID of the first vector
// in the batch.
func (l *Logger) LogAdd(ctx context.Context, count int, firstID int64, err error) {
	attrs := []slog.Attr{slog.Int("count", count)}
	if err == nil && count > 0 {
		attrs = append(attrs, slog.Int64("first_id", firstID))
	}
	l.outcome(ctx, slog.LevelDebug, "add", err, attrs...)
}

// LogSearch records a single query.
func (l *Logger) LogSearch(ctx context.Context, k, results int, err error) {
	l.outcome(ctx, slog.LevelDebug, "search", err, slog.Int("k", k), slog.Int("results", results))
}

// LogSave records a snapshot write to a file path or blob name.
func (l *Logger) LogSave(ctx context.Context, target string, bytes int64, err error) {
	attrs := []slog.Attr{slog.String("target", target)}
	if err == nil {
		attrs = append(attrs, slog.Int64("bytes", bytes))
	}
	l.outcome(ctx, slog.LevelInfo, "save", err, attrs...)
}

// LogLoad records a snapshot read.
func (l *Logger) LogLoad(ctx context.Context, source string, count int, err error) {
	attrs := []slog.Attr{slog.String("source", source)}
	if err == nil {
		attrs = append(attrs, slog.Int("count", count))
	}
	l.outcome(ctx, slog.LevelInfo, "load", err, attrs...)
}

// LogReset records how many vectors a reset dropped.
func (l *Logger) LogReset(ctx context.Context, dropped int) {
	l.outcome(ctx, slog.LevelInfo, "reset", nil, slog.Int("dropped", dropped))
}

// LogPoisoned records the panic that poisoned the index lock.
func (l *Logger) LogPoisoned(ctx context.Context, op string, recovered any) {
	l.LogAttrs(ctx, slog.LevelError, "index lock poisoned",
		slog.String("op", op), slog.Any("panic", recovered))
}
