package service

import (
	"context"
	"time"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
)

// AgentService is the application-level service the transport layer talks to.
//
// It provides:
//   - named agent definitions that sub-agents are spawned from
//   - primary sessions on the main agent and their streamed runs
//   - sub-agent spawning, listing and cancellation
//   - approval listing and resolution
type AgentService interface {
	// --- Agent definitions ---

	SaveDefinition(ctx context.Context, cfg *entity.AgentConfig) error
	GetDefinition(ctx context.Context, name string) (*entity.AgentConfig, error)
	ListDefinitions(ctx context.Context) ([]*entity.AgentConfig, error)
	DeleteDefinition(ctx context.Context, name string) error

	// --- Sessions ---

	CreateSession(ctx context.Context, title string) (*entity.SessionMetadata, error)
	GetSession(ctx context.Context, id string) (*entity.SessionMetadata, error)
	ListSessions(ctx context.Context) ([]*entity.SessionMetadata, error)
	ListChildSessions(ctx context.Context, parentID string) ([]*entity.SessionMetadata, error)
	EndSession(ctx context.Context, id string) error
	ResetSession(ctx context.Context, id string) error

	// --- Runs ---

	// SendMessage starts a run on the session; its events go to the session stream.
	SendMessage(ctx context.Context, sessionID, input string) error
	// CancelRun aborts the in-flight run of a session.
	CancelRun(ctx context.Context, sessionID string) (bool, error)

	// --- Sub-agents ---

	// SpawnSubAgent starts a sub-agent under a parent session and runs its task in
	// the background. When spawning needs approval the call returns right away with
	// Pending set and the rest happens once the approval resolves.
	SpawnSubAgent(ctx context.Context, req *SpawnSubAgentRequest) (*SpawnSubAgentResult, error)
	ListSubAgents(ctx context.Context, parentSessionID string) ([]entity.ActiveSubAgent, error)
	CancelSubAgent(ctx context.Context, agentID string) (bool, error)

	// --- Approvals ---

	PendingApprovals(ctx context.Context, sessionID string) []entity.ApprovalRequest
	// RespondApproval resolves a pending approval. With remember set, an approval also
	// trusts the request's pattern for the rest of the session.
	RespondApproval(ctx context.Context, resp entity.ApprovalResponse, remember bool) error
	CancelApproval(ctx context.Context, approvalID string) bool

	// Close cancels background work started by the service.
	Close()
}

// SpawnSubAgentRequest describes a sub-agent to spawn.
type SpawnSubAgentRequest struct {
	ParentSessionID string

	// Definition names a saved agent definition. Config is used when it is empty.
	Definition string
	Config     *entity.AgentConfig

	Task        string
	Description string
	Lifecycle   entity.Lifecycle

	// Timeout bounds the task. Zero uses the configured default.
	Timeout time.Duration
}

// SpawnSubAgentResult reports a spawn. Info is empty while Pending.
type SpawnSubAgentResult struct {
	Pending    bool                `json:"pending"`
	ApprovalID string              `json:"approval_id,omitempty"`
	Info       entity.SubAgentInfo `json:"info"`
}

// Policy holds the service knobs.
type Policy struct {
	// RequireSpawnApproval gates every spawn behind an approval request.
	RequireSpawnApproval bool

	// ApprovalTimeout bounds spawn approvals. Zero waits indefinitely.
	ApprovalTimeout time.Duration

	// SubAgentTimeout bounds sub-agent tasks without their own timeout.
	SubAgentTimeout time.Duration
}
