package subagent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
	"github.com/kiosk404/hivelink/internal/hivemind/service/approval"
	"github.com/kiosk404/hivelink/internal/hivemind/service/eventbus"
	"github.com/kiosk404/hivelink/pkg/logger"
)

// SubAgentContext is everything tracked for one spawn. It is never modified after
// Spawn returns.
type SubAgentContext struct {
	Info    entity.SubAgentInfo
	Agent   Agent
	Session Session
}

// SpawnRequest describes a sub-agent to start under a parent session.
type SpawnRequest struct {
	ParentSessionID string
	Source          AgentSource

	// Lifecycle overrides the source config and the configured default.
	Lifecycle entity.Lifecycle

	Description string
}

type tracked struct {
	ctx        SubAgentContext
	forwarders []*eventbus.Forwarder
	closing    bool
}

// Dependencies are the collaborators a Coordinator needs.
type Dependencies struct {
	Sessions SessionManager
	Factory  AgentFactory
	Config   ConfigProvider

	// Bus is the top-level bus of the runtime hosting parent sessions. Approval events
	// and spawn progress are published there.
	Bus eventbus.Bus
}

// Coordinator owns every sub-agent it spawns until Cleanup.
type Coordinator struct {
	sessions SessionManager
	factory  AgentFactory
	config   ConfigProvider
	bus      eventbus.Bus

	mu     sync.Mutex
	agents map[string]*tracked
}

// NewCoordinator creates a coordinator.
func NewCoordinator(deps Dependencies) *Coordinator {
	return &Coordinator{
		sessions: deps.Sessions,
		factory:  deps.Factory,
		config:   deps.Config,
		bus:      deps.Bus,
		agents:   make(map[string]*tracked),
	}
}

// Spawn starts a sub-agent under req.ParentSessionID and returns a handle to run its
// task. The child gets one explicit execution session whose events are relayed to the
// parent.
func (c *Coordinator) Spawn(ctx context.Context, req SpawnRequest) (*Handle, error) {
	parent, err := c.sessions.GetSession(ctx, req.ParentSessionID)
	switch {
	case errors.Is(err, errno.ErrSessionNotFound), err == nil && parent == nil:
		return nil, fmt.Errorf("%w: %s", errno.ErrParentNotFound, req.ParentSessionID)
	case err != nil:
		return nil, fmt.Errorf("look up parent session %s: %w", req.ParentSessionID, err)
	}

	maxDepth := c.maxDepth()
	parentDepth := sessionDepth(ctx, c.sessions, req.ParentSessionID)
	if parentDepth >= maxDepth {
		return nil, fmt.Errorf("%w: parent session %s is at depth %d and the limit is %d; raise subagents.max-depth to allow deeper nesting",
			errno.ErrDepthExceeded, req.ParentSessionID, parentDepth, maxDepth)
	}
	depth := parentDepth + 1

	if req.Source.kind == sourceNone || (req.Source.IsInstance() && req.Source.agent == nil) {
		return nil, fmt.Errorf("%w: no agent or config given", errno.ErrInvalidSubAgentConfig)
	}
	cfg := req.Source.agentConfig()
	if cfg.GrantsSpawn() {
		return nil, fmt.Errorf("%w: sub-agents may not use %s", errno.ErrInvalidSubAgentConfig, entity.ToolSpawnAgent)
	}
	if cfg.GrantsUserInput() {
		return nil, fmt.Errorf("%w: sub-agents may not use %s", errno.ErrInvalidSubAgentConfig, entity.ToolAskUser)
	}

	lifecycle := c.lifecycle(req, cfg)
	if !lifecycle.Valid() {
		return nil, fmt.Errorf("%w: unknown lifecycle %q", errno.ErrInvalidSubAgentConfig, lifecycle)
	}

	child, err := c.resolve(ctx, req.Source)
	if err != nil {
		return nil, err
	}

	agentID := uuid.NewString()
	session, err := child.CreateSession(ctx, entity.SessionMetadata{
		AgentID:         agentID,
		Type:            entity.SessionTypeSubAgent,
		ParentSessionID: req.ParentSessionID,
		Depth:           depth,
		Description:     req.Description,
	})
	if err != nil {
		if req.Source.IsConfig() {
			if stopErr := child.Stop(ctx); stopErr != nil {
				logger.WarnX(pkg.SubAgentModuleName, "[SubAgent] failed to stop agent after session creation error: %v", stopErr)
			}
		}
		return nil, fmt.Errorf("create execution session: %w", err)
	}

	info := entity.SubAgentInfo{
		AgentID:         agentID,
		Type:            cfg.TypeName(),
		SessionID:       session.ID(),
		ParentSessionID: req.ParentSessionID,
		Depth:           depth,
		Lifecycle:       lifecycle,
		Description:     req.Description,
		StartTime:       time.Now(),
	}
	t := &tracked{
		ctx:        SubAgentContext{Info: info, Agent: child, Session: session},
		forwarders: c.wireForwarders(ctx, info, child, parent),
	}

	c.mu.Lock()
	c.agents[agentID] = t
	c.mu.Unlock()

	logger.InfoX(pkg.SubAgentModuleName, "[SubAgent] spawned %s (%s) under %s: session=%s depth=%d lifecycle=%s",
		agentID, info.Type, req.ParentSessionID, info.SessionID, depth, lifecycle)

	c.publish(eventbus.EventSubAgentSpawned, info)
	return &Handle{sub: t.ctx, coord: c}, nil
}

// Cleanup tears down a sub-agent: its forwarders, then its agent (ephemeral) or its
// execution session (persistent). Untracked ids and concurrent calls are no-ops.
// Teardown failures are logged and returned.
func (c *Coordinator) Cleanup(ctx context.Context, agentID string) error {
	c.mu.Lock()
	t, ok := c.agents[agentID]
	if !ok || t.closing {
		c.mu.Unlock()
		return nil
	}
	t.closing = true
	c.mu.Unlock()

	for _, fw := range t.forwarders {
		fw.Dispose()
	}

	info := t.ctx.Info
	var err error
	switch info.Lifecycle {
	case entity.LifecyclePersistent:
		if endErr := t.ctx.Agent.EndSession(ctx, info.SessionID); endErr != nil {
			err = fmt.Errorf("end session %s of sub-agent %s: %w", info.SessionID, agentID, endErr)
		}
	default:
		if stopErr := t.ctx.Agent.Stop(ctx); stopErr != nil {
			err = fmt.Errorf("stop sub-agent %s: %w", agentID, stopErr)
		}
	}
	if err != nil {
		logger.ErrorX(pkg.SubAgentModuleName, "[SubAgent] cleanup of %s failed: %v", agentID, err)
	}

	c.mu.Lock()
	delete(c.agents, agentID)
	c.mu.Unlock()

	logger.InfoX(pkg.SubAgentModuleName, "[SubAgent] cleaned up %s after %s", agentID, time.Since(info.StartTime).Round(time.Millisecond))
	c.publish(eventbus.EventSubAgentCompleted, info)
	return err
}

// CleanupAll tears down every tracked sub-agent.
func (c *Coordinator) CleanupAll(ctx context.Context) error {
	c.mu.Lock()
	ids := make([]string, 0, len(c.agents))
	for id := range c.agents {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	var errs []error
	for _, id := range ids {
		errs = append(errs, c.Cleanup(ctx, id))
	}
	return errors.Join(errs...)
}

// Cancel aborts the running task of a sub-agent. Returns false when agentID is not
// tracked or nothing was running.
func (c *Coordinator) Cancel(agentID string) bool {
	sub, ok := c.Get(agentID)
	if !ok {
		return false
	}
	cancelled := sub.Session.Cancel()
	if cancelled {
		logger.InfoX(pkg.SubAgentModuleName, "[SubAgent] cancelled run of %s", agentID)
	}
	return cancelled
}

// Get returns the context of a tracked sub-agent.
func (c *Coordinator) Get(agentID string) (SubAgentContext, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.agents[agentID]
	if !ok {
		return SubAgentContext{}, false
	}
	return t.ctx, true
}

// GetActiveSubAgents lists the sub-agents spawned under parentSessionID, oldest first.
func (c *Coordinator) GetActiveSubAgents(parentSessionID string) []entity.ActiveSubAgent {
	c.mu.Lock()
	infos := make([]entity.SubAgentInfo, 0)
	for _, t := range c.agents {
		if t.ctx.Info.ParentSessionID == parentSessionID {
			infos = append(infos, t.ctx.Info)
		}
	}
	c.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].StartTime.Before(infos[j].StartTime) })

	now := time.Now()
	active := make([]entity.ActiveSubAgent, len(infos))
	for i, info := range infos {
		active[i] = entity.ActiveSubAgent{
			AgentID:   info.AgentID,
			SessionID: info.SessionID,
			Depth:     info.Depth,
			Duration:  now.Sub(info.StartTime),
		}
	}
	return active
}

func (c *Coordinator) maxDepth() int {
	if c.config == nil || c.config.MaxDepth() <= 0 {
		return 1
	}
	return c.config.MaxDepth()
}

func (c *Coordinator) lifecycle(req SpawnRequest, cfg entity.AgentConfig) entity.Lifecycle {
	switch {
	case req.Lifecycle != "":
		return req.Lifecycle
	case cfg.Lifecycle != "":
		return cfg.Lifecycle
	case c.config != nil && c.config.DefaultLifecycle() != "":
		return c.config.DefaultLifecycle()
	}
	return entity.LifecycleEphemeral
}

// resolve returns the agent the sub-agent runs on, building it for config sources.
func (c *Coordinator) resolve(ctx context.Context, src AgentSource) (Agent, error) {
	if src.IsInstance() {
		return src.agent, nil
	}
	if c.factory == nil {
		return nil, fmt.Errorf("%w: no agent factory configured", errno.ErrInvalidSubAgentConfig)
	}

	var cfg entity.AgentConfig
	if err := copier.CopyWithOption(&cfg, &src.config, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("copy sub-agent config: %w", err)
	}
	agent, err := c.factory.NewAgent(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build sub-agent %q: %w", cfg.Name, err)
	}
	return agent, nil
}

// wireForwarders relays the child's execution-session events to the parent session
// and its approval events to the top-level bus. Failures only cost visibility.
func (c *Coordinator) wireForwarders(ctx context.Context, info entity.SubAgentInfo, child Agent, parent Session) []*eventbus.Forwarder {
	fromExecution := eventbus.WithFilter(func(ev eventbus.Event) bool {
		return ev.SessionID == info.SessionID
	})
	var forwarders []*eventbus.Forwarder

	general := eventbus.NewForwarder(child.Bus(), parent.Bus())
	err := general.ForwardAll(context.WithoutCancel(ctx), eventbus.LifecycleEvents, fromExecution,
		eventbus.WithAugment(func(ev eventbus.Event) eventbus.Event {
			return ev.WithMeta(map[string]any{
				eventbus.MetaFromSubAgent:      true,
				eventbus.MetaSubAgentSessionID: info.SessionID,
				eventbus.MetaSubAgentType:      info.Type,
				eventbus.MetaDepth:             info.Depth,
			})
		}),
	)
	if err != nil {
		logger.WarnX(pkg.SubAgentModuleName, "[SubAgent] failed to forward events of %s: %v", info.AgentID, err)
	}
	forwarders = append(forwarders, general)

	if c.bus == nil {
		return forwarders
	}
	approvals := eventbus.NewForwarder(child.Bus(), c.bus)
	err = approvals.ForwardAll(context.WithoutCancel(ctx), eventbus.ApprovalEvents, fromExecution,
		eventbus.WithAugment(func(ev eventbus.Event) eventbus.Event {
			return toParentSession(ev, info)
		}),
	)
	if err != nil {
		logger.WarnX(pkg.SubAgentModuleName, "[SubAgent] failed to forward approvals of %s: %v", info.AgentID, err)
	}
	return append(forwarders, approvals)
}

// toParentSession rewrites an approval event so it belongs to the parent session.
func toParentSession(ev eventbus.Event, info entity.SubAgentInfo) eventbus.Event {
	if req, ok := approval.RequestOf(ev); ok {
		req.SessionID = info.ParentSessionID
		ev.Payload = req
	} else if resp, ok := approval.ResponseOf(ev); ok {
		resp.SessionID = info.ParentSessionID
		ev.Payload = resp
	}
	ev.SessionID = info.ParentSessionID
	return ev.WithMeta(map[string]any{
		eventbus.MetaFromSubAgent:      true,
		eventbus.MetaSubAgentSessionID: info.SessionID,
		eventbus.MetaSubAgentType:      info.Type,
		eventbus.MetaDepth:             info.Depth,
	})
}

func (c *Coordinator) publish(name string, info entity.SubAgentInfo) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(eventbus.Event{Name: name, SessionID: info.ParentSessionID, Payload: info})
}
