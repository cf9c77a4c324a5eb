package logbuf

import (
	"context"
	"log/slog"
)

// Handler tees slog records into a Ring while delegating output to an
// inner handler. The ring captures every level; the inner handler keeps
// its own level filter.
type Handler struct {
	inner  slog.Handler
	ring   *Ring
	bound  []slog.Attr
	groups []string
}

// NewHandler wraps inner with ring capture.
func NewHandler(inner slog.Handler, ring *Ring) *Handler {
	return &Handler{inner: inner, ring: ring}
}

func (h *Handler) Enabled(context.Context, slog.Level) bool {
	// The ring wants everything; the inner filter is applied in Handle.
	return true
}

func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	attrs := make(map[string]any)
	for _, a := range h.bound {
		attrs[h.key(a.Key)] = flatten(a.Value)
	}
	rec.Attrs(func(a slog.Attr) bool {
		attrs[h.key(a.Key)] = flatten(a.Value)
		return true
	})
	if len(attrs) == 0 {
		attrs = nil
	}

	h.ring.Append(Record{
		Time:    rec.Time,
		Level:   rec.Level.String(),
		Message: rec.Message,
		Attrs:   attrs,
	})

	if h.inner.Enabled(ctx, rec.Level) {
		return h.inner.Handle(ctx, rec)
	}
	return nil
}

func (h *Handler) key(k string) string {
	for i := len(h.groups) - 1; i >= 0; i-- {
		k = h.groups[i] + "." + k
	}
	return k
}

// flatten makes values JSON-safe; errors marshal as their message
// instead of an empty object.
func flatten(v slog.Value) any {
	raw := v.Resolve().Any()
	if err, ok := raw.(error); ok {
		return err.Error()
	}
	return raw
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		inner:  h.inner.WithAttrs(attrs),
		ring:   h.ring,
		bound:  append(h.bound[:len(h.bound):len(h.bound)], attrs...),
		groups: h.groups,
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		inner:  h.inner.WithGroup(name),
		ring:   h.ring,
		bound:  h.bound,
		groups: append(h.groups[:len(h.groups):len(h.groups)], name),
	}
}
