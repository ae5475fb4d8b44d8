package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// SwappableHandler is a slog.Handler whose delegate can be replaced
// while loggers built on it are in use. Components grab their logger
// once at startup; swapping the delegate retargets all of them when
// the configuration arrives.
type SwappableHandler struct {
	delegate atomic.Pointer[slog.Handler]
}

// NewSwappableHandler wraps an initial delegate handler.
func NewSwappableHandler(h slog.Handler) *SwappableHandler {
	s := &SwappableHandler{}
	s.delegate.Store(&h)
	return s
}

// Swap replaces the delegate. Concurrent Handle calls see either the
// old or the new handler, never a torn state.
func (s *SwappableHandler) Swap(h slog.Handler) {
	s.delegate.Store(&h)
}

func (s *SwappableHandler) load() slog.Handler {
	return *s.delegate.Load()
}

func (s *SwappableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return s.load().Enabled(ctx, level)
}

func (s *SwappableHandler) Handle(ctx context.Context, r slog.Record) error {
	return s.load().Handle(ctx, r)
}

// WithAttrs and WithGroup derive new swappable handlers. A derived
// handler keeps the attrs or group it was built with but does not
// follow later swaps on the parent.

func (s *SwappableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewSwappableHandler(s.load().WithAttrs(attrs))
}

func (s *SwappableHandler) WithGroup(name string) slog.Handler {
	return NewSwappableHandler(s.load().WithGroup(name))
}
