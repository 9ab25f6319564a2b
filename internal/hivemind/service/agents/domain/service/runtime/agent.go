package runtime

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/google/uuid"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
	"github.com/kiosk404/hivelink/internal/hivemind/service/eventbus"
	"github.com/kiosk404/hivelink/internal/hivemind/service/subagent"
	"github.com/kiosk404/hivelink/pkg/logger"
)

var _ subagent.Agent = (*LocalAgent)(nil)

// relayedEvents are republished from every session bus onto the agent bus.
var relayedEvents = append(append([]string{}, eventbus.LifecycleEvents...), eventbus.ApprovalEvents...)

// LocalAgent is an in-process agent. Its sessions share one chat model and publish
// their events on the agent bus tagged with their session id.
type LocalAgent struct {
	id      string
	cfg     entity.AgentConfig
	bus     *eventbus.MemoryBus
	runtime *Runtime

	model          einoModel.BaseChatModel
	contextBuilder *ContextBuilder
	executor       *TurnExecutor

	mu       sync.Mutex
	sessions map[string]*LocalSession
	stopped  bool
}

func (a *LocalAgent) ID() string                 { return a.id }
func (a *LocalAgent) Config() entity.AgentConfig { return a.cfg }
func (a *LocalAgent) Bus() eventbus.Bus          { return a.bus }

// CreateSession persists meta and opens the session. Empty ID, AgentID, Type and
// timestamps are filled in.
func (a *LocalAgent) CreateSession(ctx context.Context, meta entity.SessionMetadata) (subagent.Session, error) {
	s, err := a.OpenSession(ctx, meta)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSession is CreateSession returning the concrete session.
func (a *LocalAgent) OpenSession(ctx context.Context, meta entity.SessionMetadata) (*LocalSession, error) {
	a.mu.Lock()
	stopped := a.stopped
	a.mu.Unlock()
	if stopped {
		return nil, fmt.Errorf("%w: %s", errno.ErrAgentStopped, a.id)
	}

	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.AgentID == "" {
		meta.AgentID = a.id
	}
	if meta.Type == "" {
		meta.Type = entity.SessionTypePrimary
	}
	now := time.Now()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now

	if err := a.runtime.sessions.Create(ctx, &meta); err != nil {
		return nil, fmt.Errorf("persist session %s: %w", meta.ID, err)
	}

	s := newLocalSession(meta.ID, a, meta.Title != "")
	relayCtx, stopRelay := context.WithCancel(context.Background())
	s.stopRelay = stopRelay
	for _, name := range relayedEvents {
		_, err := s.bus.Subscribe(relayCtx, name, func(ev eventbus.Event) {
			ev.SessionID = s.id
			a.bus.Publish(ev)
		})
		if err != nil {
			s.end()
			return nil, fmt.Errorf("relay %s of session %s: %w", name, s.id, err)
		}
	}

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		s.end()
		return nil, fmt.Errorf("%w: %s", errno.ErrAgentStopped, a.id)
	}
	a.sessions[s.id] = s
	a.mu.Unlock()
	a.runtime.track(s)

	logger.InfoX(pkg.ModuleName, "[Agent] %s (%s) opened %s session %s", a.id, a.cfg.TypeName(), meta.Type, s.id)
	return s, nil
}

// EndSession closes one session. Its metadata stays in the store.
func (a *LocalAgent) EndSession(_ context.Context, sessionID string) error {
	a.mu.Lock()
	s, ok := a.sessions[sessionID]
	delete(a.sessions, sessionID)
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", errno.ErrSessionNotFound, sessionID)
	}

	s.end()
	a.runtime.untrack(sessionID)
	logger.InfoX(pkg.ModuleName, "[Agent] %s ended session %s", a.id, sessionID)
	return nil
}

// Stop ends every session and closes the agent bus. Idempotent.
func (a *LocalAgent) Stop(_ context.Context) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	sessions := a.sessions
	a.sessions = make(map[string]*LocalSession)
	a.mu.Unlock()

	for id, s := range sessions {
		s.end()
		a.runtime.untrack(id)
	}
	a.bus.Close()
	a.runtime.unregister(a.id)
	logger.InfoX(pkg.ModuleName, "[Agent] %s (%s) stopped, %d session(s) ended", a.id, a.cfg.TypeName(), len(sessions))
	return nil
}

// Sessions lists the open session ids, sorted.
func (a *LocalAgent) Sessions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.sessions))
	for id := range a.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
