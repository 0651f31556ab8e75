// Package bus provides the topic pub/sub that couples producers (UI, voice,
// scheduler) to the agent runtime and back. Delivery is sequential per
// publish: each subscriber is fully awaited before the next, so ordering is
// FIFO per publisher per topic. There is no persistence or redelivery.
package bus

import (
	"context"
	"log/slog"
	"sync"
)

// Handler consumes one message on a topic. A handler error is logged and
// does not abort delivery to sibling subscribers.
type Handler func(ctx context.Context, msg any) error

// Bus is the two-operation contract shared by the in-process and
// network-backed implementations.
type Bus interface {
	Subscribe(topic string, h Handler)
	Publish(ctx context.Context, topic string, msg any) error
}

// InProc is the default single-process bus.
type InProc struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *slog.Logger
}

// Option configures an InProc bus.
type Option func(*InProc)

// WithLogger sets the logger used for handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *InProc) { b.logger = l }
}

// NewInProc returns an empty in-process bus.
func NewInProc(opts ...Option) *InProc {
	b := &InProc{
		handlers: make(map[string][]Handler),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "bus")
	return b
}

// Subscribe registers h for topic. Handlers fire in subscription order.
func (b *InProc) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish delivers msg to every current subscriber of topic, awaiting each
// in subscription order. The returned error is reserved for transport
// failures; InProc always returns nil.
func (b *InProc) Publish(ctx context.Context, topic string, msg any) error {
	b.mu.RLock()
	hs := make([]Handler, len(b.handlers[topic]))
	copy(hs, b.handlers[topic])
	b.mu.RUnlock()

	for _, h := range hs {
		if err := h(ctx, msg); err != nil {
			b.logger.Error("handler failed", "topic", topic, "error", err)
		}
	}
	return nil
}
