package eventbus

// Agent-level events.
const (
	EventRunStarted          = "run:started"
	EventRunCompleted        = "run:completed"
	EventLLMChunk            = "llm:chunk"
	EventLLMResponse         = "llm:response"
	EventLLMError            = "llm:error"
	EventSessionReset        = "session:reset"
	EventSessionTitleUpdated = "session:title-updated"
)

// Approval events.
const (
	EventApprovalRequest  = "approval:request"
	EventApprovalResponse = "approval:response"
)

// Sub-agent progress events, published on the parent's top-level bus.
const (
	EventSubAgentSpawned   = "subagent:spawned"
	EventSubAgentCompleted = "subagent:completed"

	// EventSubAgentResult carries the output of a sub-agent task to the parent stream.
	EventSubAgentResult = "subagent:result"
)

// LifecycleEvents are relayed from a sub-agent's bus to its parent session's bus.
var LifecycleEvents = []string{
	EventRunStarted,
	EventRunCompleted,
	EventLLMChunk,
	EventLLMResponse,
	EventLLMError,
	EventSessionReset,
	EventSessionTitleUpdated,
}

// ApprovalEvents are relayed from a sub-agent's bus to the parent's top-level bus.
var ApprovalEvents = []string{
	EventApprovalRequest,
	EventApprovalResponse,
}

// Meta keys added to events relayed out of a sub-agent.
const (
	MetaFromSubAgent      = "fromSubAgent"
	MetaSubAgentSessionID = "subAgentSessionId"
	MetaSubAgentType      = "subAgentType"
	MetaDepth             = "depth"
)
