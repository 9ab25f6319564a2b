package subagent

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
	"github.com/kiosk404/hivelink/internal/hivemind/service/eventbus"
)

type fakeSession struct {
	id  string
	bus *eventbus.MemoryBus

	runFn func(ctx context.Context, input string) (string, error)

	mu        sync.Mutex
	cancelRun context.CancelFunc
	cancels   int
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{id: id, bus: eventbus.NewMemoryBus("session:" + id)}
}

func (s *fakeSession) ID() string        { return s.id }
func (s *fakeSession) Bus() eventbus.Bus { return s.bus }

func (s *fakeSession) Run(ctx context.Context, input string) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancelRun = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancelRun = nil
		s.mu.Unlock()
		cancel()
	}()

	if s.runFn == nil {
		return "done: " + input, nil
	}
	return s.runFn(ctx, input)
}

func (s *fakeSession) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelRun == nil {
		return false
	}
	s.cancels++
	s.cancelRun()
	return true
}

func (s *fakeSession) cancelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

type fakeAgent struct {
	id  string
	cfg entity.AgentConfig
	bus *eventbus.MemoryBus

	createErr error
	stopErr   error
	endErr    error
	runFn     func(ctx context.Context, input string) (string, error)

	mu       sync.Mutex
	sessions map[string]*fakeSession
	metas    map[string]entity.SessionMetadata
	ended    []string
	stopped  int
}

func newFakeAgent(cfg entity.AgentConfig) *fakeAgent {
	return &fakeAgent{
		id:       uuid.NewString(),
		cfg:      cfg,
		bus:      eventbus.NewMemoryBus("agent:" + cfg.Name),
		sessions: make(map[string]*fakeSession),
		metas:    make(map[string]entity.SessionMetadata),
	}
}

func (a *fakeAgent) ID() string                 { return a.id }
func (a *fakeAgent) Config() entity.AgentConfig { return a.cfg }
func (a *fakeAgent) Bus() eventbus.Bus          { return a.bus }

func (a *fakeAgent) CreateSession(_ context.Context, meta entity.SessionMetadata) (Session, error) {
	if a.createErr != nil {
		return nil, a.createErr
	}
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	s := newFakeSession(meta.ID)
	s.runFn = a.runFn

	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions[meta.ID] = s
	a.metas[meta.ID] = meta
	return s, nil
}

func (a *fakeAgent) EndSession(_ context.Context, sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ended = append(a.ended, sessionID)
	delete(a.sessions, sessionID)
	return a.endErr
}

func (a *fakeAgent) Stop(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped++
	return a.stopErr
}

func (a *fakeAgent) session(id string) *fakeSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions[id]
}

func (a *fakeAgent) stopCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession
	metas    map[string]*entity.SessionMetadata
	getErr   error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		sessions: make(map[string]*fakeSession),
		metas:    make(map[string]*entity.SessionMetadata),
	}
}

// add registers a session whose parent is parentID ("" for top level).
func (m *fakeSessions) add(id, parentID string) *fakeSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := newFakeSession(id)
	m.sessions[id] = s
	m.metas[id] = &entity.SessionMetadata{ID: id, ParentSessionID: parentID}
	return s
}

func (m *fakeSessions) GetSession(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, errno.ErrSessionNotFound
	}
	return s, nil
}

func (m *fakeSessions) GetSessionMetadata(_ context.Context, id string) (*entity.SessionMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.metas[id]
	if !ok {
		return nil, errno.ErrSessionNotFound
	}
	return meta, nil
}

type fakeFactory struct {
	mu      sync.Mutex
	built   []*fakeAgent
	prepare func(*fakeAgent)
	err     error
}

func (f *fakeFactory) NewAgent(_ context.Context, cfg entity.AgentConfig) (Agent, error) {
	if f.err != nil {
		return nil, f.err
	}
	a := newFakeAgent(cfg)
	if f.prepare != nil {
		f.prepare(a)
	}
	f.mu.Lock()
	f.built = append(f.built, a)
	f.mu.Unlock()
	return a, nil
}

func (f *fakeFactory) last() *fakeAgent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.built) == 0 {
		return nil
	}
	return f.built[len(f.built)-1]
}

var errBoom = errors.New("boom")
