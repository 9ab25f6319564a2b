package v1

import (
	"time"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
)

const timeFormat = time.RFC3339

// FormatTime formats a time value for API responses.
func FormatTime(t time.Time) string {
	return t.Format(timeFormat)
}

// --- Sessions ---

type CreateSessionRequest struct {
	Title string `json:"title,omitempty"`
}

type SessionResponse struct {
	ID              string `json:"id"`
	AgentID         string `json:"agent_id"`
	Type            string `json:"type"`
	ParentSessionID string `json:"parent_session_id,omitempty"`
	Depth           int    `json:"depth,omitempty"`
	Title           string `json:"title,omitempty"`
	Description     string `json:"description,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func toSessionResponse(m *entity.SessionMetadata) SessionResponse {
	return SessionResponse{
		ID:              m.ID,
		AgentID:         m.AgentID,
		Type:            string(m.Type),
		ParentSessionID: m.ParentSessionID,
		Depth:           m.Depth,
		Title:           m.Title,
		Description:     m.Description,
		CreatedAt:       FormatTime(m.CreatedAt),
		UpdatedAt:       FormatTime(m.UpdatedAt),
	}
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// --- Approvals ---

type ApprovalResponseRequest struct {
	// Status is "approved" or "denied".
	Status   string         `json:"status" binding:"required,oneof=approved denied"`
	Message  string         `json:"message,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Remember bool           `json:"remember,omitempty"`
}

type ApprovalView struct {
	ApprovalID string         `json:"approval_id"`
	SessionID  string         `json:"session_id"`
	Type       string         `json:"type"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  string         `json:"created_at"`
	ExpiresAt  string         `json:"expires_at,omitempty"`
}

func toApprovalView(r entity.ApprovalRequest) ApprovalView {
	v := ApprovalView{
		ApprovalID: r.ApprovalID,
		SessionID:  r.SessionID,
		Type:       string(r.Type),
		Metadata:   r.Metadata,
		CreatedAt:  FormatTime(r.CreatedAt),
	}
	if r.Timeout > 0 {
		v.ExpiresAt = FormatTime(r.CreatedAt.Add(r.Timeout))
	}
	return v
}

// --- Sub-agents ---

type SpawnSubAgentRequest struct {
	// Definition names a saved agent definition; Agent is an inline config used when
	// Definition is empty.
	Definition  string              `json:"definition,omitempty"`
	Agent       *entity.AgentConfig `json:"agent,omitempty"`
	Task        string              `json:"task" binding:"required"`
	Description string              `json:"description,omitempty"`
	Lifecycle   string              `json:"lifecycle,omitempty"`
	// TimeoutSeconds bounds the task. 0 uses the server default.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

type SubAgentView struct {
	AgentID         string `json:"agent_id"`
	SessionID       string `json:"session_id"`
	Depth           int    `json:"depth"`
	DurationSeconds int64  `json:"duration_seconds"`
}
