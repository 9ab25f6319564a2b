package entity

// EventType identifies the type of a streaming agent event.
type EventType string

const (
	// EventRunStatus indicates a run status change.
	EventRunStatus EventType = "run_status"

	// EventTextDelta is a chunk of assistant text being streamed.
	EventTextDelta EventType = "text_delta"

	// EventError indicates an error occurred during the run.
	EventError EventType = "error"

	// EventDone carries the final response; the stream ends after it.
	EventDone EventType = "done"
)

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
)

// TokenUsage tracks token consumption.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// ErrorPayload is the wire shape of an error. Raw error values never leave the process.
type ErrorPayload struct {
	Message     string         `json:"message"`
	Stack       string         `json:"stack,omitempty"`
	Recoverable bool           `json:"recoverable"`
	Context     map[string]any `json:"context,omitempty"`
}

// AgentEvent is a streaming event emitted during agent execution.
//
// It flows through schema.Pipe[*AgentEvent] from the execution goroutine to the
// per-session stream.
type AgentEvent struct {
	// Type identifies which kind of event this is.
	Type EventType `json:"type"`

	// SessionID is the session the event belongs to.
	SessionID string `json:"session_id,omitempty"`

	// Delta contains the text chunk for EventTextDelta events.
	Delta string `json:"delta,omitempty"`

	// Content is the full assistant reply for EventDone events.
	Content string `json:"content,omitempty"`

	// RunStatus contains the new status for EventRunStatus events.
	RunStatus RunStatus `json:"run_status,omitempty"`

	// Error is set for EventError events.
	Error *ErrorPayload `json:"error,omitempty"`

	// Usage contains token usage information for EventDone events.
	Usage *TokenUsage `json:"usage,omitempty"`
}

// IsTerminal reports whether the stream should end after this event: the final
// response, or an error that cannot be recovered from.
func (e *AgentEvent) IsTerminal() bool {
	if e == nil {
		return false
	}
	switch e.Type {
	case EventDone:
		return true
	case EventError:
		return e.Error == nil || !e.Error.Recoverable
	}
	return false
}

// SessionEvent is the payload of the run and session lifecycle events a session
// publishes on its bus (run:started, llm:chunk, session:title-updated, ...).
type SessionEvent struct {
	SessionID string      `json:"session_id"`
	RunID     string      `json:"run_id,omitempty"`
	Delta     string      `json:"delta,omitempty"`
	Content   string      `json:"content,omitempty"`
	Status    RunStatus   `json:"status,omitempty"`
	Error     string      `json:"error,omitempty"`
	Title     string      `json:"title,omitempty"`
	Usage     *TokenUsage `json:"usage,omitempty"`
}
