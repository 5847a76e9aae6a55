package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	viewIDKey ctxKey = iota
	topicKey
	modeKey
)

// WithViewID returns a context with the view ID set.
func WithViewID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, viewIDKey, id)
}

// WithTopic returns a context with the topic ID set.
func WithTopic(ctx context.Context, topic string) context.Context {
	return context.WithValue(ctx, topicKey, topic)
}

// WithMode returns a context with the diagram mode set.
func WithMode(ctx context.Context, mode string) context.Context {
	return context.WithValue(ctx, modeKey, mode)
}

// ViewID extracts the view ID from the context, or "" if absent.
func ViewID(ctx context.Context) string {
	v, _ := ctx.Value(viewIDKey).(string)
	return v
}

// Topic extracts the topic ID from the context, or "" if absent.
func Topic(ctx context.Context) string {
	v, _ := ctx.Value(topicKey).(string)
	return v
}

// Mode extracts the diagram mode from the context, or "" if absent.
func Mode(ctx context.Context) string {
	v, _ := ctx.Value(modeKey).(string)
	return v
}

// WithIDs sets all three correlation values on the context at once.
func WithIDs(ctx context.Context, viewID, topic, mode string) context.Context {
	ctx = WithViewID(ctx, viewID)
	ctx = WithTopic(ctx, topic)
	ctx = WithMode(ctx, mode)
	return ctx
}

// LogWith returns a logger enriched with correlation values from the context.
// Only non-empty values are added as attributes.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := ViewID(ctx); id != "" {
		logger = logger.With(slog.String("view_id", id))
	}
	if t := Topic(ctx); t != "" {
		logger = logger.With(slog.String("topic", t))
	}
	if m := Mode(ctx); m != "" {
		logger = logger.With(slog.String("mode", m))
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// correlation values from the context into every log record.
// Use with slog.New(NewCorrelationHandler(inner)) so callers can use
// logger.InfoContext(ctx, ...) and IDs appear automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := ViewID(ctx); v != "" {
		r.AddAttrs(slog.String("view_id", v))
	}
	if v := Topic(ctx); v != "" {
		r.AddAttrs(slog.String("topic", v))
	}
	if v := Mode(ctx); v != "" {
		r.AddAttrs(slog.String("mode", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
