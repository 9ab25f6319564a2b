package entity

import (
	"github.com/bytedance/gg/gslice"
)

// Tool names that grant recursion or human interaction. A sub-agent config listing
// either is rejected at spawn time.
const (
	ToolSpawnAgent = "spawn_agent"
	ToolAskUser    = "ask_user"
)

// Lifecycle decides what cleanup does with a sub-agent once its task finishes.
type Lifecycle string

const (
	// LifecycleEphemeral stops the whole child agent on cleanup.
	LifecycleEphemeral Lifecycle = "ephemeral"
	// LifecyclePersistent only ends the execution session; the agent stays alive.
	LifecyclePersistent Lifecycle = "persistent"
)

// Valid reports whether l is a known lifecycle.
func (l Lifecycle) Valid() bool {
	return l == LifecycleEphemeral || l == LifecyclePersistent
}

// AgentConfig is the declarative definition an agent is built from.
//
// Only the fields the coordination layer reads live here; chat-loop specific tuning
// stays with the runtime that executes it.
type AgentConfig struct {
	// Name is the human-readable agent name; also reported as the sub-agent type.
	Name string `json:"name" mapstructure:"name"`

	// SystemPrompt is the instruction prepended to every run.
	SystemPrompt string `json:"system_prompt,omitempty" mapstructure:"system_prompt"`

	// Model overrides the default chat model id. Empty means runtime default.
	Model string `json:"model,omitempty" mapstructure:"model"`

	// Tools is the list of tool names this agent may call.
	Tools []string `json:"tools,omitempty" mapstructure:"tools"`

	// Lifecycle is the preferred lifecycle when spawned as a sub-agent.
	// Empty means the runtime default.
	Lifecycle Lifecycle `json:"lifecycle,omitempty" mapstructure:"lifecycle"`
}

// GrantsSpawn reports whether the config allows spawning further agents.
func (c *AgentConfig) GrantsSpawn() bool {
	return c != nil && gslice.Contains(c.Tools, ToolSpawnAgent)
}

// GrantsUserInput reports whether the config allows prompting the user directly.
func (c *AgentConfig) GrantsUserInput() bool {
	return c != nil && gslice.Contains(c.Tools, ToolAskUser)
}

// TypeName is the label reported for this agent in forwarded events.
func (c *AgentConfig) TypeName() string {
	if c == nil || c.Name == "" {
		return "sub-agent"
	}
	return c.Name
}
