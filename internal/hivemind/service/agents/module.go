package agents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/repo"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/service"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/service/runtime"
	boltdbStore "github.com/kiosk404/hivelink/internal/hivemind/service/agents/store/boltdb"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/store/inmemory"
	"github.com/kiosk404/hivelink/internal/hivemind/service/approval"
	"github.com/kiosk404/hivelink/internal/hivemind/service/eventbus"
	"github.com/kiosk404/hivelink/internal/hivemind/service/stream"
	"github.com/kiosk404/hivelink/internal/hivemind/service/subagent"
	"github.com/kiosk404/hivelink/pkg/logger"
)

// Config holds the configuration for the Agents module.
// Follows K8S-style: Config → Complete() → New(ctx, deps).
type Config struct {
	// StoreType selects the persistence backend: "inmemory" or "boltdb".
	// Default: "inmemory".
	StoreType string `json:"store_type,omitempty"`

	// BoltDBPath is the file path for BoltDB storage (when StoreType="boltdb").
	// Default: "data/hivemind.db".
	BoltDBPath string `json:"boltdb_path,omitempty"`

	// RunTimeout is the maximum duration for a single run (default: 5m).
	RunTimeout time.Duration `json:"run_timeout,omitempty"`

	// MaxHistoryTokens bounds the history sent per turn. 0 keeps everything.
	MaxHistoryTokens int `json:"max_history_tokens,omitempty"`

	// Model is the default chat model connection.
	Model runtime.ModelConfig `json:"model"`

	// MainAgent is the agent hosting primary sessions.
	MainAgent entity.AgentConfig `json:"main_agent"`

	// Definitions are saved on start so sub-agents can be spawned by name.
	Definitions []entity.AgentConfig `json:"definitions,omitempty"`

	// SubAgentTimeout bounds a sub-agent task (default: 10m).
	SubAgentTimeout time.Duration `json:"subagent_timeout,omitempty"`

	// RequireSpawnApproval gates spawns behind an approval request.
	RequireSpawnApproval bool `json:"require_spawn_approval,omitempty"`

	// ApprovalTimeout bounds spawn approvals. 0 waits indefinitely.
	ApprovalTimeout time.Duration `json:"approval_timeout,omitempty"`

	// Stream tunes the per-session stream manager.
	Stream stream.Config `json:"stream"`
}

// CompletedConfig is the validated and completed configuration.
type CompletedConfig struct {
	*Config
}

// Complete validates and fills defaults.
func (c *Config) Complete() CompletedConfig {
	if c.StoreType == "" {
		c.StoreType = "inmemory"
	}
	if c.BoltDBPath == "" {
		c.BoltDBPath = "data/hivemind.db"
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 5 * time.Minute
	}
	if c.SubAgentTimeout <= 0 {
		c.SubAgentTimeout = 10 * time.Minute
	}
	if c.MainAgent.Name == "" {
		c.MainAgent.Name = "main"
	}
	if c.Stream.IdleTimeout <= 0 {
		c.Stream.IdleTimeout = stream.DefaultIdleTimeout
	}
	if c.Stream.MaxBufferedFrames <= 0 {
		c.Stream.MaxBufferedFrames = stream.DefaultMaxBufferedFrames
	}
	return CompletedConfig{c}
}

// Dependencies holds the external collaborators of the Agents module.
type Dependencies struct {
	// Limits supplies the sub-agent depth and lifecycle defaults; read on every spawn.
	Limits subagent.ConfigProvider

	// Models overrides the OpenAI-compatible model builder (tests, custom providers).
	Models runtime.ModelBuilder
}

// Module is the top-level Agents module, holding all domain services.
//
// It exposes:
//   - Service: the application service used by the HTTP handlers
//   - Bus: the main agent's bus, where every top-level event is visible
//   - the coordination services, for advanced usage
type Module struct {
	Service   service.AgentService
	Runtime   *runtime.Runtime
	Main      *runtime.LocalAgent
	SubAgents *subagent.Coordinator
	Approvals *approval.Gate
	Streams   *stream.Manager
	Bus       eventbus.Bus

	boltDB      *boltdbStore.DB // nil when using inmemory store
	stopWatches context.CancelFunc
}

// Close tears the module down: sub-agents, pending approvals, streams, agents and
// finally the store.
func (m *Module) Close(ctx context.Context) error {
	m.Service.Close()

	var errs []error
	errs = append(errs, m.SubAgents.CleanupAll(ctx))
	if n := m.Approvals.Handler().CancelAll(); n > 0 {
		logger.Info("[Agents] cancelled %d pending approval(s)", n)
	}
	m.Streams.Shutdown()
	m.stopWatches()
	errs = append(errs, m.Runtime.Shutdown(ctx))
	if m.boltDB != nil {
		errs = append(errs, m.boltDB.Close())
	}
	return errors.Join(errs...)
}

// New creates and initializes the Agents module from a completed config.
func (c CompletedConfig) New(ctx context.Context, deps Dependencies) (*Module, error) {
	logger.Info("[Agents] creating Agents module...")

	// Infrastructure layer: select store backend.
	var (
		agentStore   repo.AgentRepository
		sessionStore repo.SessionRepository
		boltDB       *boltdbStore.DB
	)

	switch c.StoreType {
	case "boltdb":
		var err error
		boltDB, err = boltdbStore.Open(c.BoltDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open boltdb at %s: %w", c.BoltDBPath, err)
		}
		agentStore = boltdbStore.NewAgentStore(boltDB)
		sessionStore = boltdbStore.NewSessionStore(boltDB)
		logger.Info("[Agents] using BoltDB store at %s", c.BoltDBPath)
	default:
		agentStore = inmemory.NewAgentStore()
		sessionStore = inmemory.NewSessionStore()
		logger.Info("[Agents] using in-memory store")
	}
	closeStore := func() {
		if boltDB != nil {
			_ = boltDB.Close()
		}
	}

	for i := range c.Definitions {
		if err := agentStore.Save(ctx, &c.Definitions[i]); err != nil {
			closeStore()
			return nil, fmt.Errorf("failed to save agent definition %q: %w", c.Definitions[i].Name, err)
		}
	}

	models := deps.Models
	if models == nil {
		built, err := runtime.NewModelBuilder(c.Model)
		if err != nil {
			closeStore()
			return nil, err
		}
		models = built
	}
	rt := runtime.New(sessionStore, models, runtime.Config{
		RunTimeout:       c.RunTimeout,
		MaxHistoryTokens: c.MaxHistoryTokens,
	})
	main, err := rt.NewLocalAgent(ctx, c.MainAgent)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("failed to create main agent: %w", err)
	}
	bus := main.Bus()

	watchCtx, stopWatches := context.WithCancel(context.Background())
	fail := func(err error) (*Module, error) {
		stopWatches()
		_ = rt.Shutdown(ctx)
		closeStore()
		return nil, err
	}

	approvalCoord := approval.NewCoordinator(bus)
	if err := approvalCoord.Watch(watchCtx); err != nil {
		return fail(fmt.Errorf("failed to watch approvals: %w", err))
	}
	gate := approval.NewGate(approval.NewHandler(approvalCoord))

	limits := deps.Limits
	if limits == nil {
		limits = subagent.StaticConfig{Depth: 1, Lifecycle: entity.LifecycleEphemeral}
	}
	subAgents := subagent.NewCoordinator(subagent.Dependencies{
		Sessions: rt,
		Factory:  rt,
		Config:   limits,
		Bus:      bus,
	})

	streams := stream.NewManager(c.Stream)
	if err := streams.SubscribeToEventBus(bus); err != nil {
		return fail(fmt.Errorf("failed to subscribe stream manager: %w", err))
	}

	svc := service.NewAgentService(service.Dependencies{
		AgentRepo:   agentStore,
		SessionRepo: sessionStore,
		Runtime:     rt,
		Main:        main,
		SubAgents:   subAgents,
		Approvals:   gate,
		Streams:     streams,
		Policy: service.Policy{
			RequireSpawnApproval: c.RequireSpawnApproval,
			ApprovalTimeout:      c.ApprovalTimeout,
			SubAgentTimeout:      c.SubAgentTimeout,
		},
	})

	logger.Info("[Agents] Agents module initialized (store=%s, main=%s, run_timeout=%s, subagent_timeout=%s, spawn_approval=%t, definitions=%d)",
		c.StoreType, c.MainAgent.Name, c.RunTimeout, c.SubAgentTimeout, c.RequireSpawnApproval, len(c.Definitions))

	return &Module{
		Service:     svc,
		Runtime:     rt,
		Main:        main,
		SubAgents:   subAgents,
		Approvals:   gate,
		Streams:     streams,
		Bus:         bus,
		boltDB:      boltDB,
		stopWatches: stopWatches,
	}, nil
}
