package v1

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/service"
	"github.com/kiosk404/hivelink/internal/pkg/core"
	"github.com/kiosk404/hivelink/pkg/errorx"
)

// SubAgentHandler spawns, lists and cancels sub-agents.
type SubAgentHandler struct {
	svc service.AgentService
}

// NewSubAgentHandler creates a new SubAgentHandler.
func NewSubAgentHandler(svc service.AgentService) *SubAgentHandler {
	return &SubAgentHandler{svc: svc}
}

// Spawn handles POST /v1/sessions/:id/subagents.
//
// The task runs in the background and its result is pushed to the parent session's
// stream as a subagent:result event. When spawning needs approval the response only
// carries the approval id.
func (h *SubAgentHandler) Spawn(c *gin.Context) {
	parentID := c.Param("id")
	var req SpawnSubAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrBind, "bind spawn request"), nil)
		return
	}
	lifecycle := entity.Lifecycle(req.Lifecycle)
	if lifecycle != "" && !lifecycle.Valid() {
		core.WriteResponse(c, errorx.WithCode(ErrValidation, "lifecycle %q must be ephemeral or persistent", req.Lifecycle), nil)
		return
	}
	if req.Definition == "" && req.Agent == nil {
		core.WriteResponse(c, errorx.WithCode(ErrValidation, "one of definition or agent is required"), nil)
		return
	}

	res, err := h.svc.SpawnSubAgent(c.Request.Context(), &service.SpawnSubAgentRequest{
		ParentSessionID: parentID,
		Definition:      req.Definition,
		Config:          req.Agent,
		Task:            req.Task,
		Description:     req.Description,
		Lifecycle:       lifecycle,
		Timeout:         time.Duration(req.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		core.WriteResponse(c, wrapErr(err, ErrSubAgentSpawn, "spawn sub-agent under %q", parentID), nil)
		return
	}
	core.WriteAccepted(c, res)
}

// List handles GET /v1/sessions/:id/subagents.
func (h *SubAgentHandler) List(c *gin.Context) {
	parentID := c.Param("id")
	active, err := h.svc.ListSubAgents(c.Request.Context(), parentID)
	if err != nil {
		core.WriteResponse(c, wrapErr(err, ErrSubAgentList, "list sub-agents of %q", parentID), nil)
		return
	}
	resp := make([]SubAgentView, 0, len(active))
	for _, a := range active {
		resp = append(resp, SubAgentView{
			AgentID:         a.AgentID,
			SessionID:       a.SessionID,
			Depth:           a.Depth,
			DurationSeconds: int64(a.Duration / time.Second),
		})
	}
	core.WriteResponse(c, nil, gin.H{"data": resp})
}

// Cancel handles DELETE /v1/subagents/:id.
func (h *SubAgentHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	cancelled, err := h.svc.CancelSubAgent(c.Request.Context(), id)
	if err != nil {
		core.WriteResponse(c, wrapErr(err, ErrSubAgentNotFound, "cancel sub-agent %q", id), nil)
		return
	}
	core.WriteResponse(c, nil, gin.H{"agent_id": id, "cancelled": cancelled})
}
