package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/service"
	"github.com/kiosk404/hivelink/internal/pkg/core"
	"github.com/kiosk404/hivelink/pkg/errorx"
)

// ApprovalHandler lists and resolves human-in-the-loop approvals.
type ApprovalHandler struct {
	svc service.AgentService
}

// NewApprovalHandler creates a new ApprovalHandler.
func NewApprovalHandler(svc service.AgentService) *ApprovalHandler {
	return &ApprovalHandler{svc: svc}
}

// List handles GET /v1/approvals and GET /v1/sessions/:id/approvals.
func (h *ApprovalHandler) List(c *gin.Context) {
	pending := h.svc.PendingApprovals(c.Request.Context(), c.Param("id"))
	resp := make([]ApprovalView, 0, len(pending))
	for _, r := range pending {
		resp = append(resp, toApprovalView(r))
	}
	core.WriteResponse(c, nil, gin.H{"data": resp})
}

// Respond handles POST /v1/approvals/:id.
func (h *ApprovalHandler) Respond(c *gin.Context) {
	id := c.Param("id")
	var req ApprovalResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrBind, "bind approval response"), nil)
		return
	}

	resp := entity.ApprovalResponse{
		ApprovalID: id,
		Status:     entity.ApprovalStatus(req.Status),
		Message:    req.Message,
		Data:       req.Data,
	}
	if err := h.svc.RespondApproval(c.Request.Context(), resp, req.Remember); err != nil {
		core.WriteResponse(c, wrapErr(err, ErrApprovalInvalid, "respond to approval %q", id), nil)
		return
	}
	core.WriteResponse(c, nil, gin.H{"approval_id": id, "status": req.Status, "remembered": req.Remember})
}

// Cancel handles DELETE /v1/approvals/:id.
func (h *ApprovalHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if !h.svc.CancelApproval(c.Request.Context(), id) {
		core.WriteResponse(c, errorx.WithCode(ErrApprovalNotFound, "approval %q is not pending", id), nil)
		return
	}
	core.WriteResponse(c, nil, gin.H{"approval_id": id, "status": string(entity.ApprovalCancelled)})
}
