package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// TUILogHandler is a slog.Handler that forwards log records to the prompt
// log panel via Send(). Only records at or above the configured level are sent.
type TUILogHandler struct {
	target sender
	level  slog.Leveler
	prefix string // rendered handler-level attrs
	group  string
}

// NewTUILogHandler creates a handler that sends slogMsg to the given sender.
func NewTUILogHandler(target sender, level slog.Leveler) *TUILogHandler {
	return &TUILogHandler{
		target: target,
		level:  level,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *TUILogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats the record as `message key="value"...` and sends it.
func (h *TUILogHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	b.WriteString(h.prefix)

	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, h.group, a)
		return true
	})

	h.target.Send(slogMsg{
		level:   r.Level,
		message: b.String(),
	})
	return nil
}

// WithAttrs returns a new handler with the given attributes.
func (h *TUILogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.prefix)
	for _, a := range attrs {
		appendAttr(&b, h.group, a)
	}
	clone := *h
	clone.prefix = b.String()
	return &clone
}

// WithGroup returns a new handler with the given group name.
func (h *TUILogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = qualify(h.group, name)
	return &clone
}

// appendAttr writes a as ` key="value"`, flattening groups into dotted keys.
func appendAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		sub := group
		if a.Key != "" {
			sub = qualify(group, a.Key)
		}
		for _, ga := range a.Value.Group() {
			appendAttr(b, sub, ga)
		}
		return
	}
	fmt.Fprintf(b, " %s=%q", qualify(group, a.Key), a.Value.String())
}

func qualify(group, key string) string {
	if group == "" {
		return key
	}
	return group + "." + key
}
