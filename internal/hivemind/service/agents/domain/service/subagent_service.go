package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
	"github.com/kiosk404/hivelink/internal/hivemind/service/eventbus"
	"github.com/kiosk404/hivelink/internal/hivemind/service/subagent"
	"github.com/kiosk404/hivelink/pkg/logger"
	"github.com/kiosk404/hivelink/pkg/utils/safego"
)

// SpawnSubAgent spawns a sub-agent and runs its task in the background. The task
// output, or its error, reaches the parent stream as a subagent:result event.
//
// Flow:
//  1. Resolve the agent config (saved definition or inline config)
//  2. Without approval gating: spawn now and return the sub-agent info
//  3. With approval gating: emit the approval request and return its id; the spawn
//     happens once the request is approved
func (a *agentServiceImpl) SpawnSubAgent(ctx context.Context, req *SpawnSubAgentRequest) (*SpawnSubAgentResult, error) {
	if req.Task == "" {
		return nil, fmt.Errorf("%w: task is required", errno.ErrInvalidSubAgentConfig)
	}
	if _, ok := a.runtime.Session(req.ParentSessionID); !ok {
		return nil, fmt.Errorf("%w: %s", errno.ErrParentNotFound, req.ParentSessionID)
	}
	cfg, err := a.resolveConfig(ctx, req)
	if err != nil {
		return nil, err
	}

	if !a.policy.RequireSpawnApproval {
		handle, err := a.spawn(ctx, req, cfg)
		if err != nil {
			return nil, err
		}
		return &SpawnSubAgentResult{Info: handle.Info()}, nil
	}

	approvalReq := entity.ApprovalRequest{
		ApprovalID: uuid.NewString(),
		SessionID:  req.ParentSessionID,
		Type:       entity.ApprovalSubAgentSpawn,
		Timeout:    a.policy.ApprovalTimeout,
		Metadata: map[string]any{
			"tool_name":   entity.ToolSpawnAgent,
			"agent":       cfg.TypeName(),
			"task":        req.Task,
			"description": req.Description,
		},
	}
	safego.Go(a.bg, func() {
		resp, err := a.approvals.Check(a.bg, approvalReq)
		if err != nil {
			a.reportFailure(req.ParentSessionID, "", err)
			return
		}
		if !resp.Approved() {
			logger.InfoX(pkg.SubAgentModuleName, "[SubAgent] spawn of %s under %s not approved: %s/%s",
				cfg.TypeName(), req.ParentSessionID, resp.Status, resp.Reason)
			a.reportFailure(req.ParentSessionID, "", fmt.Errorf("%w: %s", errno.ErrSpawnDenied, resp.Reason))
			return
		}
		if _, err := a.spawn(a.bg, req, cfg); err != nil {
			a.reportFailure(req.ParentSessionID, "", err)
		}
	})
	return &SpawnSubAgentResult{Pending: true, ApprovalID: approvalReq.ApprovalID}, nil
}

func (a *agentServiceImpl) ListSubAgents(_ context.Context, parentSessionID string) ([]entity.ActiveSubAgent, error) {
	return a.subAgents.GetActiveSubAgents(parentSessionID), nil
}

func (a *agentServiceImpl) CancelSubAgent(_ context.Context, agentID string) (bool, error) {
	if _, ok := a.subAgents.Get(agentID); !ok {
		return false, fmt.Errorf("%w: %s", errno.ErrSubAgentNotFound, agentID)
	}
	return a.subAgents.Cancel(agentID), nil
}

func (a *agentServiceImpl) resolveConfig(ctx context.Context, req *SpawnSubAgentRequest) (entity.AgentConfig, error) {
	if req.Definition != "" {
		def, err := a.agentRepo.Get(ctx, req.Definition)
		if err != nil {
			return entity.AgentConfig{}, fmt.Errorf("%w: %v", errno.ErrInvalidSubAgentConfig, err)
		}
		return *def, nil
	}
	if req.Config == nil {
		return entity.AgentConfig{}, fmt.Errorf("%w: no definition or config given", errno.ErrInvalidSubAgentConfig)
	}
	return *req.Config, nil
}

// spawn starts the sub-agent and its task. The task runs detached from ctx.
func (a *agentServiceImpl) spawn(ctx context.Context, req *SpawnSubAgentRequest, cfg entity.AgentConfig) (*subagent.Handle, error) {
	handle, err := a.subAgents.Spawn(ctx, subagent.SpawnRequest{
		ParentSessionID: req.ParentSessionID,
		Source:          subagent.FromConfig(cfg),
		Lifecycle:       req.Lifecycle,
		Description:     req.Description,
	})
	if err != nil {
		return nil, err
	}

	timeout := a.subAgentTimeout(req)
	safego.Go(a.bg, func() {
		info := handle.Info()
		output, err := handle.Run(a.bg, req.Task, subagent.WithTimeout(timeout))
		if err != nil {
			a.reportFailure(info.ParentSessionID, info.AgentID, err)
			return
		}
		a.streams.PushEvent(info.ParentSessionID, eventbus.EventSubAgentResult, entity.SubAgentResult{
			AgentID:   info.AgentID,
			SessionID: info.SessionID,
			Output:    output,
		})
	})
	return handle, nil
}

func (a *agentServiceImpl) reportFailure(parentSessionID, agentID string, err error) {
	level := logger.WarnX
	if errors.Is(err, errno.ErrSpawnDenied) || errors.Is(err, context.Canceled) {
		level = logger.InfoX
	}
	level(pkg.SubAgentModuleName, "[SubAgent] task of %q under %s failed: %v", agentID, parentSessionID, err)
	a.streams.PushEvent(parentSessionID, eventbus.EventSubAgentResult, entity.SubAgentResult{
		AgentID: agentID,
		Error:   err.Error(),
	})
}
