// Package logger provides structured logging on top of log/slog.
package logger

import (
	"context"
	"io"
	"log/slog"
)

// Level represents the minimum log level.
type Level slog.Level

const (
	LevelDebug = Level(slog.LevelDebug)
	LevelInfo  = Level(slog.LevelInfo)
	LevelWarn  = Level(slog.LevelWarn)
	LevelError = Level(slog.LevelError)
)

// TraceIDFn extracts a trace id from the context for log correlation.
type TraceIDFn func(ctx context.Context) string

// LoggerInterface is the logging surface shared across the application.
type LoggerInterface interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
}

// Logger wraps slog with context-aware trace correlation.
type Logger struct {
	handler slog.Handler
	traceID TraceIDFn
}

// New creates a Logger writing structured text to w at the given level.
// service is attached to every record; traceIDFn may be nil.
func New(w io.Writer, minLevel Level, service string, traceIDFn TraceIDFn) *Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.Level(minLevel),
	})

	attrs := []slog.Attr{
		slog.String("service", service),
	}
	return &Logger{
		handler: handler.WithAttrs(attrs),
		traceID: traceIDFn,
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.write(ctx, slog.LevelDebug, msg, args)
}

// Info logs at info level.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.write(ctx, slog.LevelInfo, msg, args)
}

// Warn logs at warn level.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.write(ctx, slog.LevelWarn, msg, args)
}

// Error logs at error level.
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.write(ctx, slog.LevelError, msg, args)
}

func (l *Logger) write(ctx context.Context, level slog.Level, msg string, args []any) {
	if !l.handler.Enabled(ctx, level) {
		return
	}
	if l.traceID != nil {
		if id := l.traceID(ctx); id != "" {
			args = append(args, "trace_id", id)
		}
	}
	logger := slog.New(l.handler)
	logger.Log(ctx, level, msg, args...)
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}
