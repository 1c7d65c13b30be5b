package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger with nthprime-specific fields.
type Logger struct {
	*slog.Logger
}

// New creates a Logger with the given handler.
// If handler is nil, uses a text handler to stderr at info level.
func New(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewWriter creates a Logger writing to w in the given format ("text" or "json").
func NewWriter(w io.Writer, format string, level slog.Level) (*Logger, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "", "text":
		return New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// Noop creates a Logger that discards all output.
func Noop() *Logger {
	return New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(1000)}))
}

// ParseLevel maps debug/info/warn/error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// WithN adds the target index field.
func (l *Logger) WithN(n *big.Int) *Logger {
	return &Logger{Logger: l.Logger.With("n", n.String())}
}

// WithComponent tags log lines with the emitting component.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name)}
}

// LogSearch logs the outcome of an n-th prime search.
func (l *Logger) LogSearch(ctx context.Context, n, prime *big.Int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"n", n.String(),
			"elapsed", elapsed,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "search completed",
		"n", n.String(),
		"prime", prime.String(),
		"elapsed", elapsed,
	)
}

// LogProgress logs an intermediate scan state.
func (l *Logger) LogProgress(ctx context.Context, candidate, count *big.Int) {
	l.DebugContext(ctx, "search progress",
		"candidate", candidate.String(),
		"count", count.String(),
	)
}

// LogClassify logs a single primality query.
func (l *Logger) LogClassify(ctx context.Context, k *big.Int, prime, exact bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "primality test failed",
			"k", k.String(),
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "primality test completed",
		"k", k.String(),
		"prime", prime,
		"exact", exact,
	)
}

// LogBatch logs a batch computation.
func (l *Logger) LogBatch(ctx context.Context, size int, elapsed time.Duration, err error) {
	if err != nil {
		l.WarnContext(ctx, "batch aborted",
			"size", size,
			"elapsed", elapsed,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "batch completed",
		"size", size,
		"elapsed", elapsed,
	)
}
