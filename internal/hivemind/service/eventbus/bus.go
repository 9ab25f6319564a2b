// Package eventbus defines the publish/subscribe abstraction shared by agents, sessions
// and the coordination services, plus an in-process implementation.
package eventbus

import (
	"context"
	"sync"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
	"github.com/kiosk404/hivelink/pkg/logger"
)

// Event is one published occurrence on a bus.
type Event struct {
	// Name is the event name, e.g. "approval:request".
	Name string

	// SessionID is the session the event belongs to; empty for agent-wide events.
	SessionID string

	// Payload is the typed event body (entity.ApprovalRequest, entity.AgentEvent, ...).
	Payload any

	// Meta carries fields added in transit, e.g. by an EventForwarder.
	Meta map[string]any
}

// WithMeta returns a copy of e with kv merged over its existing Meta.
func (e Event) WithMeta(kv map[string]any) Event {
	meta := make(map[string]any, len(e.Meta)+len(kv))
	for k, v := range e.Meta {
		meta[k] = v
	}
	for k, v := range kv {
		meta[k] = v
	}
	e.Meta = meta
	return e
}

// Handler receives events. It runs on the publishing goroutine.
type Handler func(ev Event)

// Subscription is a live registration on a bus.
type Subscription interface {
	// Unsubscribe removes the registration. Safe to call more than once and after
	// the bus has been closed.
	Unsubscribe()
}

// Bus is the publish/subscribe contract. Delivery order to a subscriber follows
// publish order on a single publishing goroutine.
type Bus interface {
	// Publish delivers ev to every current subscriber of ev.Name.
	Publish(ev Event)

	// Subscribe registers h for events named name. The registration is removed when
	// ctx is done or Unsubscribe is called. Returns errno.ErrBusClosed on a closed bus.
	Subscribe(ctx context.Context, name string, h Handler) (Subscription, error)
}

type subscription struct {
	bus     *MemoryBus
	ctx     context.Context
	name    string
	id      uint64
	handler Handler

	once     sync.Once
	stopWait func() bool
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.stopWait != nil {
			s.stopWait()
		}
		s.bus.remove(s.name, s.id)
	})
}

// MemoryBus is an in-process Bus. Handlers are called synchronously, outside the bus
// lock, so they may publish, subscribe or unsubscribe.
type MemoryBus struct {
	name string

	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]*subscription
	closed bool
}

// NewMemoryBus creates a bus. name only appears in logs.
func NewMemoryBus(name string) *MemoryBus {
	return &MemoryBus{
		name: name,
		subs: make(map[string][]*subscription),
	}
}

var _ Bus = (*MemoryBus)(nil)

func (b *MemoryBus) Publish(ev Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	targets := make([]*subscription, len(b.subs[ev.Name]))
	copy(targets, b.subs[ev.Name])
	b.mu.RUnlock()

	for _, s := range targets {
		if !b.active(s) {
			continue
		}
		b.dispatch(s, ev)
	}
}

func (b *MemoryBus) Subscribe(ctx context.Context, name string, h Handler) (Subscription, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errno.ErrBusClosed
	}
	b.nextID++
	s := &subscription{bus: b, ctx: ctx, name: name, id: b.nextID, handler: h}
	b.subs[name] = append(b.subs[name], s)
	b.mu.Unlock()

	if ctx != nil && ctx.Done() != nil {
		s.stopWait = context.AfterFunc(ctx, s.Unsubscribe)
	}

	logger.DebugX(pkg.EventBusModuleName, "[EventBus] %s: subscribed to %s (id=%d)", b.name, name, s.id)
	return s, nil
}

// SubscriberCount returns the number of live subscriptions for name.
func (b *MemoryBus) SubscriberCount(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

// Close drops every subscription. Later Publish calls are ignored and Subscribe fails.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.subs = make(map[string][]*subscription)
	logger.DebugX(pkg.EventBusModuleName, "[EventBus] %s: closed", b.name)
}

// active reports whether s is still registered; a handler earlier in the same
// dispatch may have removed it. A subscription whose ctx is done is inactive even
// before its AfterFunc has removed it.
func (b *MemoryBus) active(s *subscription) bool {
	if s.ctx != nil && s.ctx.Err() != nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, cur := range b.subs[s.name] {
		if cur == s {
			return true
		}
	}
	return false
}

func (b *MemoryBus) dispatch(s *subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorX(pkg.EventBusModuleName, "[EventBus] %s: handler for %s panicked: %v", b.name, ev.Name, r)
		}
	}()
	s.handler(ev)
}

func (b *MemoryBus) remove(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[name]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		next := make([]*subscription, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(b.subs, name)
		} else {
			b.subs[name] = next
		}
		return
	}
}
