// Package observability provides structured logging and metrics collection.
//
// Logger wraps log/slog with a persistent component field.
// Metrics exposes generation and history counters to Prometheus.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// MaxRawLogBytes caps how much raw model output goes into one log record.
const MaxRawLogBytes = 2048

// Options selects the handler and level.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// Logger wraps slog with persistent component context.
type Logger struct {
	mu        sync.RWMutex
	inner     *slog.Logger
	component string
	fields    []slog.Attr
}

// NewLogger creates a JSON logger at DEBUG level for a component.
// Output defaults to os.Stderr if w is nil.
func NewLogger(component string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	return &Logger{
		inner:     slog.New(handler),
		component: component,
	}
}

// NewLoggerWithOptions creates a logger with a configured level and format.
func NewLoggerWithOptions(component string, w io.Writer, opts Options) (*Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	ho := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "json":
		h = slog.NewJSONHandler(w, ho)
	case "text":
		h = slog.NewTextHandler(w, ho)
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	return NewLoggerWithHandler(component, h), nil
}

// NewLoggerWithHandler creates a logger with a custom slog handler.
func NewLoggerWithHandler(component string, h slog.Handler) *Logger {
	return &Logger{
		inner:     slog.New(h),
		component: component,
	}
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// With returns a new Logger with an additional persistent field.
func (l *Logger) With(key string, value any) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fields := make([]slog.Attr, len(l.fields), len(l.fields)+1)
	copy(fields, l.fields)
	return &Logger{
		inner:     l.inner.With(slog.Any(key, value)),
		component: l.component,
		fields:    append(fields, slog.Any(key, value)),
	}
}

// Named returns a logger sharing the handler and fields under another component.
func (l *Logger) Named(component string) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Logger{
		inner:     l.inner,
		component: component,
		fields:    l.fields,
	}
}

// attrs prepends the component name to the arguments.
func (l *Logger) attrs(args []any) []any {
	return append([]any{slog.String("component", l.component)}, args...)
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, args ...any) {
	l.inner.Debug(msg, l.attrs(args)...)
}

// Info logs at INFO level.
func (l *Logger) Info(msg string, args ...any) {
	l.inner.Info(msg, l.attrs(args)...)
}

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, args ...any) {
	l.inner.Warn(msg, l.attrs(args)...)
}

// Error logs at ERROR level.
func (l *Logger) Error(msg string, args ...any) {
	l.inner.Error(msg, l.attrs(args)...)
}

// Generation logs the outcome of one generation attempt. Committed attempts
// log at INFO, every failure class at WARN.
func (l *Logger) Generation(outcome string, args ...any) {
	allArgs := append([]any{
		slog.String("component", l.component),
		slog.String("outcome", outcome),
	}, args...)
	if outcome == "committed" {
		l.inner.Info("generation", allArgs...)
		return
	}
	l.inner.Warn("generation", allArgs...)
}

// HistoryEvent logs a cursor move or commit.
func (l *Logger) HistoryEvent(op string, index, count int, args ...any) {
	allArgs := append([]any{
		slog.String("component", l.component),
		slog.String("op", op),
		slog.Int("index", index),
		slog.Int("versions", count),
	}, args...)
	l.inner.Info("history", allArgs...)
}

// Slog returns the underlying slog logger.
func (l *Logger) Slog() *slog.Logger {
	return l.inner
}

// ComponentName returns the component associated with this logger.
func (l *Logger) ComponentName() string {
	return l.component
}

// TruncateRaw shortens s to MaxRawLogBytes for logging, on a rune boundary.
func TruncateRaw(s string) string {
	if len(s) <= MaxRawLogBytes {
		return s
	}
	cut := MaxRawLogBytes
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
