package subagent

import (
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
)

type sourceKind int

const (
	sourceNone sourceKind = iota
	sourceInstance
	sourceConfig
)

// AgentSource says where a sub-agent comes from: an agent the caller already built, or
// a configuration the coordinator builds one from.
type AgentSource struct {
	kind   sourceKind
	agent  Agent
	config entity.AgentConfig
}

// FromInstance spawns onto an existing agent. The coordinator never builds it, so it
// is not stopped when spawning fails.
func FromInstance(agent Agent) AgentSource {
	return AgentSource{kind: sourceInstance, agent: agent}
}

// FromConfig builds a fresh agent from cfg through the AgentFactory.
func FromConfig(cfg entity.AgentConfig) AgentSource {
	return AgentSource{kind: sourceConfig, config: cfg}
}

// IsInstance reports whether the source wraps an existing agent.
func (s AgentSource) IsInstance() bool { return s.kind == sourceInstance }

// IsConfig reports whether the source is a configuration.
func (s AgentSource) IsConfig() bool { return s.kind == sourceConfig }

// agentConfig returns the configuration the sub-agent will run with.
func (s AgentSource) agentConfig() entity.AgentConfig {
	if s.kind == sourceInstance && s.agent != nil {
		return s.agent.Config()
	}
	return s.config
}
