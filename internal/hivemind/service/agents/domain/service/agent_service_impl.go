package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/repo"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/service/runtime"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
	"github.com/kiosk404/hivelink/internal/hivemind/service/approval"
	"github.com/kiosk404/hivelink/internal/hivemind/service/stream"
	"github.com/kiosk404/hivelink/internal/hivemind/service/subagent"
	"github.com/kiosk404/hivelink/pkg/logger"
)

// Dependencies are the collaborators of the agent service.
type Dependencies struct {
	AgentRepo   repo.AgentRepository
	SessionRepo repo.SessionRepository
	Runtime     *runtime.Runtime
	Main        *runtime.LocalAgent
	SubAgents   *subagent.Coordinator
	Approvals   *approval.Gate
	Streams     *stream.Manager
	Policy      Policy
}

// agentServiceImpl implements the AgentService interface.
type agentServiceImpl struct {
	agentRepo   repo.AgentRepository
	sessionRepo repo.SessionRepository
	runtime     *runtime.Runtime
	main        *runtime.LocalAgent
	subAgents   *subagent.Coordinator
	approvals   *approval.Gate
	streams     *stream.Manager
	policy      Policy

	// bg bounds work that outlives a request: streamed runs and sub-agent tasks.
	bg     context.Context
	cancel context.CancelFunc
}

func NewAgentService(deps Dependencies) AgentService {
	bg, cancel := context.WithCancel(context.Background())
	return &agentServiceImpl{
		agentRepo:   deps.AgentRepo,
		sessionRepo: deps.SessionRepo,
		runtime:     deps.Runtime,
		main:        deps.Main,
		subAgents:   deps.SubAgents,
		approvals:   deps.Approvals,
		streams:     deps.Streams,
		policy:      deps.Policy,
		bg:          bg,
		cancel:      cancel,
	}
}

func (a *agentServiceImpl) SaveDefinition(ctx context.Context, cfg *entity.AgentConfig) error {
	if cfg == nil || cfg.Name == "" {
		return fmt.Errorf("%w: definition needs a name", errno.ErrInvalidSubAgentConfig)
	}
	if cfg.Lifecycle != "" && !cfg.Lifecycle.Valid() {
		return fmt.Errorf("%w: unknown lifecycle %q", errno.ErrInvalidSubAgentConfig, cfg.Lifecycle)
	}
	return a.agentRepo.Save(ctx, cfg)
}

func (a *agentServiceImpl) GetDefinition(ctx context.Context, name string) (*entity.AgentConfig, error) {
	return a.agentRepo.Get(ctx, name)
}

func (a *agentServiceImpl) ListDefinitions(ctx context.Context) ([]*entity.AgentConfig, error) {
	return a.agentRepo.List(ctx)
}

func (a *agentServiceImpl) DeleteDefinition(ctx context.Context, name string) error {
	return a.agentRepo.Delete(ctx, name)
}

func (a *agentServiceImpl) CreateSession(ctx context.Context, title string) (*entity.SessionMetadata, error) {
	s, err := a.main.OpenSession(ctx, entity.SessionMetadata{Type: entity.SessionTypePrimary, Title: title})
	if err != nil {
		return nil, err
	}
	return a.sessionRepo.Get(ctx, s.ID())
}

func (a *agentServiceImpl) GetSession(ctx context.Context, id string) (*entity.SessionMetadata, error) {
	return a.sessionRepo.Get(ctx, id)
}

func (a *agentServiceImpl) ListSessions(ctx context.Context) ([]*entity.SessionMetadata, error) {
	return a.sessionRepo.ListByAgent(ctx, a.main.ID())
}

func (a *agentServiceImpl) ListChildSessions(ctx context.Context, parentID string) ([]*entity.SessionMetadata, error) {
	return a.sessionRepo.ListChildren(ctx, parentID)
}

func (a *agentServiceImpl) EndSession(ctx context.Context, id string) error {
	if err := a.main.EndSession(ctx, id); err != nil {
		return err
	}
	a.approvals.Forget(id)
	a.streams.Close(id)
	return nil
}

func (a *agentServiceImpl) ResetSession(_ context.Context, id string) error {
	s, ok := a.runtime.Session(id)
	if !ok {
		return fmt.Errorf("%w: %s", errno.ErrSessionNotFound, id)
	}
	return s.Reset()
}

func (a *agentServiceImpl) SendMessage(_ context.Context, sessionID, input string) error {
	s, ok := a.runtime.Session(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", errno.ErrSessionNotFound, sessionID)
	}
	sr, err := s.Stream(a.bg, input)
	if err != nil {
		return err
	}
	a.streams.StartStreaming(sessionID, sr)
	return nil
}

func (a *agentServiceImpl) CancelRun(_ context.Context, sessionID string) (bool, error) {
	s, ok := a.runtime.Session(sessionID)
	if !ok {
		return false, fmt.Errorf("%w: %s", errno.ErrSessionNotFound, sessionID)
	}
	return s.Cancel(), nil
}

func (a *agentServiceImpl) PendingApprovals(_ context.Context, sessionID string) []entity.ApprovalRequest {
	var out []entity.ApprovalRequest
	for _, req := range a.approvals.Handler().PendingRequests() {
		if sessionID == "" || req.SessionID == sessionID {
			out = append(out, req)
		}
	}
	return out
}

func (a *agentServiceImpl) RespondApproval(_ context.Context, resp entity.ApprovalResponse, remember bool) error {
	if resp.ApprovalID == "" {
		return fmt.Errorf("%w: missing approval id", errno.ErrInvalidApproval)
	}
	switch resp.Status {
	case entity.ApprovalApproved, entity.ApprovalDenied:
	default:
		return fmt.Errorf("%w: status must be approved or denied", errno.ErrInvalidApproval)
	}
	if resp.Reason == "" {
		resp.Reason = entity.ReasonUserApproved
		if resp.Status == entity.ApprovalDenied {
			resp.Reason = entity.ReasonUserDenied
		}
	}

	coord := a.approvals.Handler().Coordinator()
	req, local := a.findPending(resp.ApprovalID)
	if !local {
		// Requests relayed from other buses are only known by their session.
		if _, ok := coord.SessionID(resp.ApprovalID); !ok {
			return fmt.Errorf("%w: %s", errno.ErrApprovalNotFound, resp.ApprovalID)
		}
	}

	if remember && local && resp.Approved() {
		n := a.approvals.Remember(req.SessionID, approval.PatternOf(req), resp.Data)
		logger.InfoX(pkg.ApprovalModuleName, "[Approval] session %s now trusts %s, %d pending request(s) approved",
			req.SessionID, req.Type, n)
		return nil
	}
	coord.EmitResponse(resp)
	return nil
}

func (a *agentServiceImpl) CancelApproval(_ context.Context, approvalID string) bool {
	return a.approvals.Handler().Cancel(approvalID)
}

func (a *agentServiceImpl) Close() {
	a.cancel()
}

func (a *agentServiceImpl) findPending(id string) (entity.ApprovalRequest, bool) {
	for _, req := range a.approvals.Handler().PendingRequests() {
		if req.ApprovalID == id {
			return req, true
		}
	}
	return entity.ApprovalRequest{}, false
}

func (a *agentServiceImpl) subAgentTimeout(req *SpawnSubAgentRequest) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return a.policy.SubAgentTimeout
}
