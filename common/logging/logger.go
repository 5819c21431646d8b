// Package logging is the structured logger shared by the stager binaries.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Logger is a slog.Logger that knows how to pull the flush batch ID and
// the active trace out of a context.
type Logger struct {
	*slog.Logger
}

// New logs to stdout. format is "text" or "json"; anything else means json.
func New(level slog.Level, format string) *Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter is New with a caller-supplied destination.
func NewWithWriter(w io.Writer, level slog.Level, format string) *Logger {
	return &Logger{Logger: slog.New(newHandler(w, level, format))}
}

func newHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}
	if format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// Default wraps slog.Default().
func Default() *Logger {
	return &Logger{Logger: slog.Default()}
}

// Discard drops every record.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithContext adds batch_id and trace_id when ctx carries them.
func (l *Logger) WithContext(ctx context.Context) *slog.Logger {
	logger := l.Logger
	if id := BatchIDFromContext(ctx); id != "" {
		logger = logger.With(slog.String(FieldBatchID, id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		logger = logger.With(slog.String(FieldTraceID, sc.TraceID().String()))
	}
	return logger
}

func (l *Logger) logContext(ctx context.Context, level slog.Level, msg string, args ...any) {
	if !l.Enabled(ctx, level) {
		return
	}
	l.WithContext(ctx).Log(ctx, level, msg, args...)
}

// DebugContext logs at debug level with context attributes.
func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.logContext(ctx, slog.LevelDebug, msg, args...)
}

// InfoContext logs at info level with context attributes.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.logContext(ctx, slog.LevelInfo, msg, args...)
}

// WarnContext logs at warn level with context attributes.
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.logContext(ctx, slog.LevelWarn, msg, args...)
}

// ErrorContext logs at error level with context attributes.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.logContext(ctx, slog.LevelError, msg, args...)
}

// With returns a Logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// ParseLevel accepts slog level names in any case, plus "warning".
// Unknown or empty values mean info.
func ParseLevel(level string) slog.Level {
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// SetDefault installs l as slog's default, which also redirects the log package.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}
