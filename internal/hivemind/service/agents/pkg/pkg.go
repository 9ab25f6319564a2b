// Package pkg holds identifiers shared by the agents module's services.
package pkg

// Module names attached to X-variant log lines.
const (
	ModuleName         = "agents"
	SubAgentModuleName = "subagent"
	ApprovalModuleName = "approval"
	StreamModuleName   = "stream"
	EventBusModuleName = "eventbus"
)
