package dashboard

import (
	"context"
	"fmt"
	"log/slog"
)

// RingHandler is a slog.Handler that tees every record to a bounded
// channel instead of (or in addition to) writing it anywhere, so the
// dashboard can display a live log tail without a pub-sub event bus:
// there is exactly one subscriber, the attached TUI program.
type RingHandler struct {
	next    slog.Handler
	ch      chan EventMsg
	attrs   []slog.Attr
	groupPx string
}

// NewRingHandler wraps next (may be nil) and forwards every record as an
// EventMsg on the returned handler's channel, dropping records if the
// channel is full rather than blocking the logger.
func NewRingHandler(next slog.Handler, bufSize int) *RingHandler {
	return &RingHandler{
		next: next,
		ch:   make(chan EventMsg, bufSize),
	}
}

// Events returns the channel new log records are published on.
func (h *RingHandler) Events() <-chan EventMsg {
	return h.ch
}

func (h *RingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.next != nil {
		return h.next.Enabled(ctx, level)
	}
	return true
}

func (h *RingHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make([]string, 0, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs = append(attrs, fmt.Sprintf("%s=%v", a.Key, a.Value))
	}
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if h.groupPx != "" {
			key = h.groupPx + "." + key
		}
		attrs = append(attrs, fmt.Sprintf("%s=%v", key, a.Value))
		return true
	})

	evt := EventMsg{
		Time:    r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
		Attrs:   attrs,
	}

	select {
	case h.ch <- evt:
	default:
		// Drop rather than block the logger; the dashboard is best-effort.
	}

	if h.next != nil {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *RingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	combined := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	combined = append(combined, h.attrs...)
	combined = append(combined, attrs...)

	var next slog.Handler
	if h.next != nil {
		next = h.next.WithAttrs(attrs)
	}
	return &RingHandler{next: next, ch: h.ch, attrs: combined, groupPx: h.groupPx}
}

func (h *RingHandler) WithGroup(name string) slog.Handler {
	groupPx := name
	if h.groupPx != "" {
		groupPx = h.groupPx + "." + name
	}

	var next slog.Handler
	if h.next != nil {
		next = h.next.WithGroup(name)
	}
	return &RingHandler{next: next, ch: h.ch, attrs: h.attrs, groupPx: groupPx}
}
