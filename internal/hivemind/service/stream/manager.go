package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
	"github.com/kiosk404/hivelink/internal/hivemind/service/eventbus"
	"github.com/kiosk404/hivelink/pkg/logger"
)

const (
	DefaultIdleTimeout       = 5 * time.Minute
	DefaultMaxBufferedFrames = 1024
)

// Config tunes a Manager.
type Config struct {
	// IdleTimeout is how long a closed session's state is kept before eviction.
	IdleTimeout time.Duration

	// MaxBufferedFrames caps frames held for a session nobody is reading yet.
	// The oldest frame is dropped when the cap is reached.
	MaxBufferedFrames int
}

// sessionState is the per-session multiplexer state. It moves from buffering (no
// sink) to live (sink attached) to closed, and is evicted after IdleTimeout.
type sessionState struct {
	generation uint64
	buffer     []Frame
	sink       *Stream
	evict      *time.Timer
	closed     bool
	cancel     context.CancelFunc
}

// Manager multiplexes agent events and out-of-band bus events into one ordered
// frame stream per session. At most one producer feeds a session at a time.
type Manager struct {
	idleTimeout time.Duration
	maxBuffered int

	mu         sync.Mutex
	states     map[string]*sessionState
	nextGen    uint64
	busRelease func()
	shutdown   bool
}

// NewManager creates a manager. Zero config fields take their defaults.
func NewManager(cfg Config) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.MaxBufferedFrames <= 0 {
		cfg.MaxBufferedFrames = DefaultMaxBufferedFrames
	}
	return &Manager{
		idleTimeout: cfg.IdleTimeout,
		maxBuffered: cfg.MaxBufferedFrames,
		states:      make(map[string]*sessionState),
	}
}

// StartStreaming makes reader the producer for sessionID and drains it in the
// background. Any previous producer and sink of the session are closed first. The
// session is closed when reader ends, fails or yields a terminal event.
func (m *Manager) StartStreaming(sessionID string, reader *schema.StreamReader[*entity.AgentEvent]) {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		logger.WarnX(pkg.StreamModuleName, "[Stream] manager is shut down, discarding producer for session %s", sessionID)
		cancel()
		reader.Close()
		return
	}
	var pending []Frame
	if old, ok := m.states[sessionID]; ok {
		if !old.closed {
			if old.cancel != nil || old.sink != nil {
				logger.WarnX(pkg.StreamModuleName, "[Stream] session %s already has a live stream, replacing it", sessionID)
			}
			// Unread frames of a session nobody attached to yet carry over.
			pending = old.buffer
		}
		m.teardown(old)
	}
	m.nextGen++
	gen := m.nextGen
	m.states[sessionID] = &sessionState{generation: gen, cancel: cancel, buffer: pending}
	m.mu.Unlock()

	go m.drain(ctx, sessionID, gen, reader)
}

func (m *Manager) drain(ctx context.Context, sessionID string, gen uint64, reader *schema.StreamReader[*entity.AgentEvent]) {
	defer reader.Close()
	defer m.closeGeneration(sessionID, gen)

	for {
		if ctx.Err() != nil {
			return
		}
		ev, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			logger.ErrorX(pkg.StreamModuleName, "[Stream] producer for session %s failed: %v", sessionID, err)
			m.pushGeneration(sessionID, gen, errorFrame(sessionID, err))
			return
		}
		if ev == nil {
			continue
		}

		frame, err := agentEventFrame(ev)
		if err != nil {
			logger.WarnX(pkg.StreamModuleName, "[Stream] dropping event for session %s: %v", sessionID, err)
			continue
		}
		if !m.pushGeneration(sessionID, gen, frame) {
			return
		}
		if ev.IsTerminal() {
			return
		}
	}
}

// CreateStream attaches a reader to the session. Frames buffered so far are delivered
// first, in arrival order. A previous reader of the session is closed.
func (m *Manager) CreateStream(sessionID string) (*Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errno.ErrNoStreamState, sessionID)
	}
	if st.sink != nil {
		st.sink.close()
	}

	s := newStream(sessionID, m)
	if len(st.buffer) > 0 {
		s.push(st.buffer...)
		st.buffer = nil
	}
	if st.closed {
		s.close()
	}
	st.sink = s
	return s, nil
}

// PushEvent appends an event to the session, creating its state if needed.
func (m *Manager) PushEvent(sessionID, name string, payload any) {
	frame, err := newFrame(name, payload)
	if err != nil {
		logger.WarnX(pkg.StreamModuleName, "[Stream] dropping %s for session %s: %v", name, sessionID, err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return
	}
	st, ok := m.states[sessionID]
	if !ok {
		m.nextGen++
		st = &sessionState{generation: m.nextGen}
		m.states[sessionID] = st
	}
	m.deliver(sessionID, st, frame)
}

// PushApprovalEvent appends an out-of-band event to an existing session. Events for
// sessions without state are dropped.
func (m *Manager) PushApprovalEvent(sessionID, name string, payload any) {
	m.pushBusEvent(eventbus.Event{Name: name, SessionID: sessionID, Payload: payload})
}

func (m *Manager) pushBusEvent(ev eventbus.Event) {
	m.mu.Lock()
	st, ok := m.states[ev.SessionID]
	m.mu.Unlock()
	if !ok {
		logger.DebugX(pkg.StreamModuleName, "[Stream] no stream for session %s, dropping %s", ev.SessionID, ev.Name)
		return
	}

	frame, err := busEventFrame(ev)
	if err != nil {
		logger.WarnX(pkg.StreamModuleName, "[Stream] dropping %s for session %s: %v", ev.Name, ev.SessionID, err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.states[ev.SessionID]; ok && cur == st {
		m.deliver(ev.SessionID, st, frame)
	}
}

// Close marks the session closed, ends its reader and schedules eviction. Idempotent.
func (m *Manager) Close(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[sessionID]; ok {
		m.closeState(sessionID, st)
	}
}

// HasState reports whether the session currently has stream state.
func (m *Manager) HasState(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.states[sessionID]
	return ok
}

// SubscribeToEventBus routes approval, title and sub-agent events from bus into the
// matching sessions. A later call replaces the subscriptions of an earlier one.
func (m *Manager) SubscribeToEventBus(bus eventbus.Bus) error {
	ctx, cancel := context.WithCancel(context.Background())
	var subs []eventbus.Subscription
	release := func() {
		cancel()
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}

	m.mu.Lock()
	prev := m.busRelease
	m.busRelease = release
	m.mu.Unlock()
	if prev != nil {
		prev()
	}

	subscribe := func(name string, h eventbus.Handler) error {
		sub, err := bus.Subscribe(ctx, name, h)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", name, err)
		}
		subs = append(subs, sub)
		return nil
	}

	direct := []string{
		eventbus.EventApprovalRequest,
		eventbus.EventApprovalResponse,
		eventbus.EventSessionTitleUpdated,
		eventbus.EventSubAgentSpawned,
		eventbus.EventSubAgentCompleted,
	}
	for _, name := range direct {
		if err := subscribe(name, m.pushBusEvent); err != nil {
			release()
			return err
		}
	}

	// Lifecycle events of the session's own run arrive through its producer; only
	// those relayed from sub-agents are pushed from the bus.
	for _, name := range eventbus.LifecycleEvents {
		if name == eventbus.EventSessionTitleUpdated {
			continue
		}
		err := subscribe(name, func(ev eventbus.Event) {
			if from, _ := ev.Meta[eventbus.MetaFromSubAgent].(bool); from {
				m.pushBusEvent(ev)
			}
		})
		if err != nil {
			release()
			return err
		}
	}
	return nil
}

// Shutdown drops the bus subscriptions and closes and evicts every session. Events
// pushed afterwards are dropped.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = true
	if m.busRelease != nil {
		m.busRelease()
		m.busRelease = nil
	}
	for id, st := range m.states {
		m.teardown(st)
		delete(m.states, id)
	}
	logger.InfoX(pkg.StreamModuleName, "[Stream] stream manager shut down")
}

// detach closes the session of s if s is still its reader.
func (m *Manager) detach(s *Stream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[s.sessionID]
	if !ok || st.sink != s {
		s.close()
		return
	}
	m.closeState(s.sessionID, st)
}

// pushGeneration delivers a producer frame if gen still owns the session.
func (m *Manager) pushGeneration(sessionID string, gen uint64, f Frame) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[sessionID]
	if !ok || st.generation != gen || st.closed {
		return false
	}
	m.deliver(sessionID, st, f)
	return true
}

func (m *Manager) closeGeneration(sessionID string, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[sessionID]; ok && st.generation == gen {
		m.closeState(sessionID, st)
	}
}

// deliver routes f to the live reader or the buffer. m.mu must be held.
func (m *Manager) deliver(sessionID string, st *sessionState, f Frame) {
	if st.closed {
		logger.DebugX(pkg.StreamModuleName, "[Stream] session %s is closed, dropping %s", sessionID, f.Event)
		return
	}
	if st.sink != nil && st.sink.push(f) {
		return
	}
	if len(st.buffer) >= m.maxBuffered {
		logger.WarnX(pkg.StreamModuleName, "[Stream] buffer for session %s is full (%d), dropping oldest frame", sessionID, m.maxBuffered)
		st.buffer[0] = Frame{}
		st.buffer = st.buffer[1:]
	}
	st.buffer = append(st.buffer, f)
}

// closeState closes st and schedules its eviction. m.mu must be held.
func (m *Manager) closeState(sessionID string, st *sessionState) {
	if st.closed {
		return
	}
	st.closed = true
	if st.cancel != nil {
		st.cancel()
	}
	if st.sink != nil {
		st.sink.close()
	}
	st.evict = time.AfterFunc(m.idleTimeout, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if cur, ok := m.states[sessionID]; ok && cur == st {
			delete(m.states, sessionID)
			logger.DebugX(pkg.StreamModuleName, "[Stream] evicted idle session %s", sessionID)
		}
	})
	logger.DebugX(pkg.StreamModuleName, "[Stream] session %s closed", sessionID)
}

// teardown force-closes st without scheduling eviction. m.mu must be held.
func (m *Manager) teardown(st *sessionState) {
	st.closed = true
	if st.cancel != nil {
		st.cancel()
	}
	if st.sink != nil {
		st.sink.close()
	}
	if st.evict != nil {
		st.evict.Stop()
	}
}
