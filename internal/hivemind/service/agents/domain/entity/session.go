package entity

import (
	"time"
)

// SessionType distinguishes user-facing sessions from sub-agent execution sessions.
type SessionType string

const (
	SessionTypePrimary  SessionType = "primary"
	SessionTypeSubAgent SessionType = "sub-agent"
)

// SessionMetadata is the persisted description of a session.
//
// ParentSessionID links an execution session to the session that spawned it; following
// these links upward yields the spawn depth.
type SessionMetadata struct {
	// ID is the unique session identifier.
	ID string `json:"id"`

	// AgentID is the agent this session belongs to.
	AgentID string `json:"agent_id"`

	// Type is primary for user sessions, sub-agent for execution sessions.
	Type SessionType `json:"type"`

	// ParentSessionID is empty for top-level sessions.
	ParentSessionID string `json:"parent_session_id,omitempty"`

	// Depth is the recorded spawn depth (0 for top-level sessions).
	Depth int `json:"depth,omitempty"`

	// Description is the task description given at spawn time.
	Description string `json:"description,omitempty"`

	// Title is the human-readable session title, updated by the runtime.
	Title string `json:"title,omitempty"`

	// CreatedAt is when this session was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when this session was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsSubAgentSession returns true if this session was spawned for a sub-agent.
func (s *SessionMetadata) IsSubAgentSession() bool {
	return s.ParentSessionID != ""
}
