package entity

import (
	"time"
)

// ApprovalType identifies what is being approved.
type ApprovalType string

const (
	ApprovalToolConfirmation ApprovalType = "tool_confirmation"
	ApprovalSubAgentSpawn    ApprovalType = "subagent_spawn"
	ApprovalCustom           ApprovalType = "custom"
)

// ApprovalStatus is the terminal status of an approval.
type ApprovalStatus string

const (
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalDenied    ApprovalStatus = "denied"
	ApprovalCancelled ApprovalStatus = "cancelled"
)

// ApprovalReason explains why an approval ended the way it did.
type ApprovalReason string

const (
	ReasonUserApproved    ApprovalReason = "user_approved"
	ReasonUserDenied      ApprovalReason = "user_denied"
	ReasonUserCancelled   ApprovalReason = "user_cancelled"
	ReasonSystemCancelled ApprovalReason = "system_cancelled"
	ReasonTimeout         ApprovalReason = "timeout"
	ReasonRemembered      ApprovalReason = "remembered"
)

// ApprovalRequest asks a human to confirm an action.
type ApprovalRequest struct {
	// ApprovalID correlates the request with its response.
	ApprovalID string `json:"approval_id"`

	// SessionID is the session the request belongs to.
	SessionID string `json:"session_id"`

	// Type identifies the kind of action awaiting approval.
	Type ApprovalType `json:"type"`

	// Timeout bounds the wait. Zero waits indefinitely.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Metadata is the kind-specific payload (tool name, arguments, task...).
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt is when the request was emitted.
	CreatedAt time.Time `json:"created_at"`
}

// ToolName returns the "tool_name" metadata entry, if present.
func (r *ApprovalRequest) ToolName() string {
	if r.Metadata == nil {
		return ""
	}
	name, _ := r.Metadata["tool_name"].(string)
	return name
}

// ApprovalResponse is the terminal answer to an ApprovalRequest.
type ApprovalResponse struct {
	ApprovalID string         `json:"approval_id"`
	SessionID  string         `json:"session_id,omitempty"`
	Status     ApprovalStatus `json:"status"`
	Reason     ApprovalReason `json:"reason,omitempty"`
	Message    string         `json:"message,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Approved is shorthand for Status == ApprovalApproved.
func (r ApprovalResponse) Approved() bool {
	return r.Status == ApprovalApproved
}
