// Package logging configures the process wide slog logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

const (
	KeyComponent = "component"
	KeyError     = "error"
)

// switchableHandler lets package loggers created before Init pick up the
// configured handler once Init runs. Attributes and groups are replayed in
// the order they were added.
type switchableHandler struct {
	current *atomic.Value // stores handlerRef
	scopes  []func(slog.Handler) slog.Handler
}

// handlerRef gives every stored handler the same concrete type, which
// atomic.Value requires across stores.
type handlerRef struct{ slog.Handler }

func (h *switchableHandler) materialize() slog.Handler {
	handler := h.current.Load().(handlerRef).Handler
	for _, scope := range h.scopes {
		handler = scope(handler)
	}
	return handler
}

func (h *switchableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.materialize().Enabled(ctx, level)
}

func (h *switchableHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.materialize().Handle(ctx, record)
}

func (h *switchableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	attrs = append([]slog.Attr(nil), attrs...)
	return h.with(func(handler slog.Handler) slog.Handler { return handler.WithAttrs(attrs) })
}

func (h *switchableHandler) WithGroup(name string) slog.Handler {
	return h.with(func(handler slog.Handler) slog.Handler { return handler.WithGroup(name) })
}

func (h *switchableHandler) with(scope func(slog.Handler) slog.Handler) *switchableHandler {
	scopes := make([]func(slog.Handler) slog.Handler, 0, len(h.scopes)+1)
	scopes = append(scopes, h.scopes...)
	return &switchableHandler{current: h.current, scopes: append(scopes, scope)}
}

var rootHandler = newRootHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func newRootHandler(handler slog.Handler) *switchableHandler {
	current := &atomic.Value{}
	current.Store(handlerRef{handler})
	return &switchableHandler{current: current}
}

func init() {
	slog.SetDefault(slog.New(rootHandler))
}

// Init configures the default logger. Call once after config is loaded.
// format: "json" or "text" (default "text")
// level: "debug", "info", "warn", "error" (default "info")
// output: writer to log to (nil = os.Stderr)
func Init(format, level string, output io.Writer) {
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	rootHandler.current.Store(handlerRef{handler})
	slog.SetDefault(slog.New(rootHandler))
}

// OpenFile opens path for appending log lines. An empty path discards
// logs, which is what the TUI wants when no file is configured.
func OpenFile(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{io.Discard}, nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// L returns a logger tagged with component.
func L(component string) *slog.Logger {
	return slog.New(rootHandler).With(KeyComponent, component)
}

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
