package logging

import (
	"context"
	"log/slog"
	"strings"
)

const redactedValue = "[REDACTED]"

// DefaultRedactKeys are masked by every logger returned from GetLogger.
//
//nolint:gochecknoglobals
var DefaultRedactKeys = []string{
	"password",
	"password_hash",
	"passwordHash",
	"token",
	"secret",
	"authorization",
}

// RedactingHandler masks the values of sensitive attributes, including
// attributes nested in groups, before passing records on.
type RedactingHandler struct {
	h    slog.Handler
	keys map[string]struct{}
}

var _ slog.Handler = (*RedactingHandler)(nil)

// NewRedactingHandler creates a handler masking the given attribute keys.
// Keys are matched case-insensitively.
func NewRedactingHandler(h slog.Handler, keys ...string) *RedactingHandler {
	set := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		set[strings.ToLower(key)] = struct{}{}
	}

	return &RedactingHandler{h: h, keys: set}
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	redacted := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	r.Attrs(func(attr slog.Attr) bool {
		redacted.AddAttrs(h.redact(attr))

		return true
	})

	//nolint:wrapcheck
	return h.h.Handle(ctx, redacted)
}

func (h *RedactingHandler) redact(attr slog.Attr) slog.Attr {
	if _, ok := h.keys[strings.ToLower(attr.Key)]; ok {
		return slog.String(attr.Key, redactedValue)
	}

	if attr.Value.Kind() != slog.KindGroup {
		return attr
	}

	group := attr.Value.Group()
	attrs := make([]slog.Attr, len(group))

	for i, a := range group {
		attrs[i] = h.redact(a)
	}

	return slog.Attr{Key: attr.Key, Value: slog.GroupValue(attrs...)}
}

// WithAttrs implements slog.Handler.WithAttrs.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		redacted[i] = h.redact(attr)
	}

	return &RedactingHandler{h: h.h.WithAttrs(redacted), keys: h.keys}
}

// WithGroup implements slog.Handler.WithGroup.
func (h *RedactingHandler) WithGroup(name string) Handler {
	return &RedactingHandler{h: h.h.WithGroup(name), keys: h.keys}
}

// Enabled implements slog.Handler.Enabled.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}
