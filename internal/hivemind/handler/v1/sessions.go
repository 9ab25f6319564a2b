package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/service"
	"github.com/kiosk404/hivelink/internal/pkg/core"
	"github.com/kiosk404/hivelink/pkg/errorx"
)

// SessionHandler handles primary session REST API endpoints.
type SessionHandler struct {
	svc service.AgentService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(svc service.AgentService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// Create handles POST /v1/sessions.
func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			core.WriteResponse(c, errorx.WrapC(err, ErrBind, "bind session request"), nil)
			return
		}
	}
	meta, err := h.svc.CreateSession(c.Request.Context(), req.Title)
	if err != nil {
		core.WriteResponse(c, wrapErr(err, ErrSessionCreate, "create session"), nil)
		return
	}
	core.WriteResponse(c, nil, toSessionResponse(meta))
}

// List handles GET /v1/sessions.
func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.svc.ListSessions(c.Request.Context())
	if err != nil {
		core.WriteResponse(c, wrapErr(err, ErrSessionList, "list sessions"), nil)
		return
	}
	writeSessions(c, sessions)
}

// Children handles GET /v1/sessions/:id/children.
func (h *SessionHandler) Children(c *gin.Context) {
	id := c.Param("id")
	sessions, err := h.svc.ListChildSessions(c.Request.Context(), id)
	if err != nil {
		core.WriteResponse(c, wrapErr(err, ErrSessionList, "list children of %q", id), nil)
		return
	}
	writeSessions(c, sessions)
}

// Get handles GET /v1/sessions/:id.
func (h *SessionHandler) Get(c *gin.Context) {
	id := c.Param("id")
	meta, err := h.svc.GetSession(c.Request.Context(), id)
	if err != nil {
		core.WriteResponse(c, wrapErr(err, ErrSessionNotFound, "session %q not found", id), nil)
		return
	}
	core.WriteResponse(c, nil, toSessionResponse(meta))
}

// Delete handles DELETE /v1/sessions/:id. The session is ended; its metadata stays.
func (h *SessionHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.EndSession(c.Request.Context(), id); err != nil {
		core.WriteResponse(c, wrapErr(err, ErrSessionEnd, "end session %q", id), nil)
		return
	}
	core.WriteResponse(c, nil, gin.H{"id": id, "ended": true})
}

// Reset handles POST /v1/sessions/:id/reset.
func (h *SessionHandler) Reset(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.ResetSession(c.Request.Context(), id); err != nil {
		core.WriteResponse(c, wrapErr(err, ErrSessionEnd, "reset session %q", id), nil)
		return
	}
	core.WriteResponse(c, nil, gin.H{"id": id, "reset": true})
}

// SendMessage handles POST /v1/sessions/:id/messages.
//
// The run continues in the background; its events are read from
// GET /v1/sessions/:id/events.
func (h *SessionHandler) SendMessage(c *gin.Context) {
	id := c.Param("id")
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrBind, "bind message request"), nil)
		return
	}
	if err := h.svc.SendMessage(c.Request.Context(), id, req.Content); err != nil {
		core.WriteResponse(c, wrapErr(err, ErrRunStart, "start run on %q", id), nil)
		return
	}
	core.WriteAccepted(c, gin.H{"session_id": id, "status": string(entity.RunStatusInProgress)})
}

// Cancel handles POST /v1/sessions/:id/cancel.
func (h *SessionHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	cancelled, err := h.svc.CancelRun(c.Request.Context(), id)
	if err != nil {
		core.WriteResponse(c, wrapErr(err, ErrSessionNotFound, "cancel run on %q", id), nil)
		return
	}
	core.WriteResponse(c, nil, gin.H{"session_id": id, "cancelled": cancelled})
}

func writeSessions(c *gin.Context, sessions []*entity.SessionMetadata) {
	resp := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, toSessionResponse(s))
	}
	core.WriteResponse(c, nil, gin.H{"data": resp})
}
