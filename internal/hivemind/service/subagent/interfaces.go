// Package subagent spawns, tracks and tears down child agents running a task on behalf
// of a parent session.
package subagent

import (
	"context"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/eventbus"
)

// Session is one conversation on an agent.
type Session interface {
	ID() string

	// Run executes input to completion and returns the assistant reply.
	Run(ctx context.Context, input string) (string, error)

	// Cancel aborts the in-flight run. Returns false when nothing was running.
	Cancel() bool

	// Bus carries this session's events.
	Bus() eventbus.Bus
}

// Agent is a running agent able to host sessions.
type Agent interface {
	ID() string
	Config() entity.AgentConfig

	// Bus is the agent-wide bus; session events are republished on it tagged with
	// their session id.
	Bus() eventbus.Bus

	// CreateSession creates an explicit session described by meta. An empty meta.ID
	// is generated.
	CreateSession(ctx context.Context, meta entity.SessionMetadata) (Session, error)

	// EndSession ends one session and keeps the agent running.
	EndSession(ctx context.Context, sessionID string) error

	// Stop ends every session and shuts the agent down.
	Stop(ctx context.Context) error
}

// SessionManager resolves sessions and their persisted metadata.
type SessionManager interface {
	// GetSession returns errno.ErrSessionNotFound (possibly wrapped) for an unknown id.
	GetSession(ctx context.Context, sessionID string) (Session, error)
	GetSessionMetadata(ctx context.Context, sessionID string) (*entity.SessionMetadata, error)
}

// AgentFactory builds agents from configuration.
type AgentFactory interface {
	NewAgent(ctx context.Context, cfg entity.AgentConfig) (Agent, error)
}

// ConfigProvider exposes the runtime limits read on every spawn.
type ConfigProvider interface {
	MaxDepth() int
	DefaultLifecycle() entity.Lifecycle
}

// StaticConfig is a fixed ConfigProvider.
type StaticConfig struct {
	Depth     int
	Lifecycle entity.Lifecycle
}

func (s StaticConfig) MaxDepth() int                      { return s.Depth }
func (s StaticConfig) DefaultLifecycle() entity.Lifecycle { return s.Lifecycle }
