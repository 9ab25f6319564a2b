// Package runtime runs agents in process: sessions stream a chat model turn by turn
// and publish their lifecycle on event buses.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/repo"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
	"github.com/kiosk404/hivelink/internal/hivemind/service/eventbus"
	"github.com/kiosk404/hivelink/internal/hivemind/service/subagent"
	"github.com/kiosk404/hivelink/pkg/logger"
)

var (
	_ subagent.SessionManager = (*Runtime)(nil)
	_ subagent.AgentFactory   = (*Runtime)(nil)
)

// Config tunes the runtime.
type Config struct {
	// RunTimeout bounds a single run. Zero means no bound.
	RunTimeout time.Duration

	// MaxHistoryTokens bounds the history sent per turn. Zero keeps everything.
	MaxHistoryTokens int
}

// Runtime builds LocalAgents and resolves their sessions.
type Runtime struct {
	sessions  repo.SessionRepository
	models    ModelBuilder
	cfg       Config
	estimator *TokenEstimator

	mu     sync.Mutex
	agents map[string]*LocalAgent
	live   map[string]*LocalSession
}

// New creates a runtime persisting session metadata in sessions.
func New(sessions repo.SessionRepository, models ModelBuilder, cfg Config) *Runtime {
	return &Runtime{
		sessions:  sessions,
		models:    models,
		cfg:       cfg,
		estimator: NewTokenEstimator(DefaultCharsPerToken),
		agents:    make(map[string]*LocalAgent),
		live:      make(map[string]*LocalSession),
	}
}

// NewAgent builds an agent from cfg.
func (r *Runtime) NewAgent(ctx context.Context, cfg entity.AgentConfig) (subagent.Agent, error) {
	a, err := r.NewLocalAgent(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// NewLocalAgent builds an agent from cfg and registers it.
func (r *Runtime) NewLocalAgent(ctx context.Context, cfg entity.AgentConfig) (*LocalAgent, error) {
	if r.models == nil {
		return nil, errors.New("no model builder configured")
	}
	cm, err := r.models(ctx, cfg)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	a := &LocalAgent{
		id:             id,
		cfg:            cfg,
		bus:            eventbus.NewMemoryBus("agent:" + id),
		runtime:        r,
		model:          cm,
		contextBuilder: NewContextBuilder(r.estimator, r.cfg.MaxHistoryTokens),
		executor:       NewTurnExecutor(r.estimator),
		sessions:       make(map[string]*LocalSession),
	}

	r.mu.Lock()
	r.agents[id] = a
	r.mu.Unlock()
	logger.InfoX(pkg.ModuleName, "[Runtime] agent %s (%s) created", id, cfg.TypeName())
	return a, nil
}

// GetSession resolves an open session.
func (r *Runtime) GetSession(_ context.Context, sessionID string) (subagent.Session, error) {
	s, ok := r.Session(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errno.ErrSessionNotFound, sessionID)
	}
	return s, nil
}

// Session returns an open session.
func (r *Runtime) Session(sessionID string) (*LocalSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.live[sessionID]
	return s, ok
}

// GetSessionMetadata loads persisted metadata, open or not.
func (r *Runtime) GetSessionMetadata(ctx context.Context, sessionID string) (*entity.SessionMetadata, error) {
	return r.sessions.Get(ctx, sessionID)
}

// Agent returns a registered agent.
func (r *Runtime) Agent(id string) (*LocalAgent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	return a, ok
}

// Agents lists the registered agents ordered by id.
func (r *Runtime) Agents() []*LocalAgent {
	r.mu.Lock()
	agents := make([]*LocalAgent, 0, len(r.agents))
	for _, a := range r.agents {
		agents = append(agents, a)
	}
	r.mu.Unlock()
	sort.Slice(agents, func(i, j int) bool { return agents[i].id < agents[j].id })
	return agents
}

// Shutdown stops every agent.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error
	for _, a := range r.Agents() {
		errs = append(errs, a.Stop(ctx))
	}
	return errors.Join(errs...)
}

func (r *Runtime) track(s *LocalSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[s.id] = s
}

func (r *Runtime) untrack(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, sessionID)
}

func (r *Runtime) unregister(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, agentID)
}
