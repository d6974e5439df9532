package logging

import (
	"context"
	"log/slog"
	"sync"
)

// ContextProvider returns attributes to attach to every record.
type ContextProvider func() []slog.Attr

// ContextHandler wraps another handler and injects attributes computed at log time.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

// NewContextHandler creates a handler that adds provider's attributes to each record.
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{inner: inner, provider: provider}
}

// Enabled delegates to the inner handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds the dynamic attributes and delegates.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		r.AddAttrs(h.provider()...)
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a new ContextHandler with the given attributes.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), provider: h.provider}
}

// WithGroup returns a new ContextHandler with the given group.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{inner: h.inner.WithGroup(name), provider: h.provider}
}

// RunContext tracks the session currently driven by the process and its
// simulated clock, for ContextHandler.
type RunContext struct {
	mu        sync.RWMutex
	sessionID string
	tick      uint64
	elapsedMS int64
}

// SetSession records the active session id.
func (c *RunContext) SetSession(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
	c.tick = 0
	c.elapsedMS = 0
}

// SetTick records the latest simulated tick.
func (c *RunContext) SetTick(tick uint64, elapsedMS int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick = tick
	c.elapsedMS = elapsedMS
}

// Attrs is a ContextProvider. It returns nothing until a session is set.
func (c *RunContext) Attrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sessionID == "" {
		return nil
	}
	return []slog.Attr{
		slog.Uint64("tick", c.tick),
		slog.Int64("sim_ms", c.elapsedMS),
	}
}
