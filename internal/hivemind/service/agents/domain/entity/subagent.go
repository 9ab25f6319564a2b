package entity

import (
	"time"
)

// SubAgentInfo is the immutable description of a spawned sub-agent.
//
// It is created once at spawn time and never mutated; cleanup removes it from the
// coordinator instead of updating a status field.
type SubAgentInfo struct {
	// AgentID is the generated tracking id for this spawn.
	AgentID string `json:"agent_id"`

	// Type is the child agent's type label (its config name).
	Type string `json:"type"`

	// SessionID is the explicit execution session created on the child agent.
	SessionID string `json:"session_id"`

	// ParentSessionID is the session that spawned this sub-agent.
	ParentSessionID string `json:"parent_session_id"`

	// Depth is the nesting level; 1 for a child of a top-level session.
	Depth int `json:"depth"`

	// Lifecycle decides what cleanup does with the child agent.
	Lifecycle Lifecycle `json:"lifecycle"`

	// Description is the task description given at spawn time.
	Description string `json:"description,omitempty"`

	// StartTime is when the sub-agent was spawned.
	StartTime time.Time `json:"start_time"`
}

// ActiveSubAgent is the read model returned when listing sub-agents of a parent.
type ActiveSubAgent struct {
	AgentID   string        `json:"agent_id"`
	SessionID string        `json:"session_id"`
	Depth     int           `json:"depth"`
	Duration  time.Duration `json:"duration"`
}

// SubAgentResult is the outcome of a sub-agent task, delivered to the parent session.
type SubAgentResult struct {
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
	Output    string `json:"output,omitempty"`
	Error     string `json:"error,omitempty"`
}
