package eventbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
	"github.com/kiosk404/hivelink/pkg/logger"
)

// FilterFunc decides whether an event is relayed.
type FilterFunc func(ev Event) bool

// AugmentFunc rewrites an event before it is republished.
type AugmentFunc func(ev Event) Event

type forwardOptions struct {
	filter  FilterFunc
	augment AugmentFunc
}

// ForwardOption configures a single Forward registration.
type ForwardOption func(*forwardOptions)

// WithFilter drops events for which f returns false.
func WithFilter(f FilterFunc) ForwardOption {
	return func(o *forwardOptions) { o.filter = f }
}

// WithAugment republishes g(ev) instead of ev.
func WithAugment(g AugmentFunc) ForwardOption {
	return func(o *forwardOptions) { o.augment = g }
}

// Forwarder relays named events from a source bus to a destination bus.
//
// Republishing happens inside the source bus's delivery, so relayed events keep the
// order they were published in.
type Forwarder struct {
	src Bus
	dst Bus

	mu       sync.Mutex
	subs     []Subscription
	disposed bool
}

// NewForwarder creates a forwarder from src to dst.
func NewForwarder(src, dst Bus) *Forwarder {
	return &Forwarder{src: src, dst: dst}
}

// Forward subscribes once on the source bus for name. The registration ends when ctx is
// done or Dispose is called.
func (f *Forwarder) Forward(ctx context.Context, name string, opts ...ForwardOption) error {
	var o forwardOptions
	for _, opt := range opts {
		opt(&o)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disposed {
		return errno.ErrForwarderDisposed
	}

	sub, err := f.src.Subscribe(ctx, name, func(ev Event) {
		if o.filter != nil && !o.filter(ev) {
			return
		}
		out := ev
		if o.augment != nil {
			out = o.augment(ev)
		}
		out.Name = name
		f.dst.Publish(out)
	})
	if err != nil {
		return fmt.Errorf("forward %s: %w", name, err)
	}
	f.subs = append(f.subs, sub)
	return nil
}

// ForwardAll registers the same options for every name. On failure the registrations
// made so far stay in place; Dispose removes them.
func (f *Forwarder) ForwardAll(ctx context.Context, names []string, opts ...ForwardOption) error {
	for _, name := range names {
		if err := f.Forward(ctx, name, opts...); err != nil {
			return err
		}
	}
	return nil
}

// Dispose removes every registration made through this forwarder. Idempotent.
func (f *Forwarder) Dispose() {
	f.mu.Lock()
	if f.disposed {
		f.mu.Unlock()
		return
	}
	f.disposed = true
	subs := f.subs
	f.subs = nil
	f.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	logger.DebugX(pkg.EventBusModuleName, "[Forwarder] disposed %d registrations", len(subs))
}
