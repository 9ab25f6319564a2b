package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
)

// AgentOptions describes the main agent and the named definitions sub-agents can be
// spawned from. Definitions are only configurable through the config file.
type AgentOptions struct {
	Main             entity.AgentConfig   `json:"main"               mapstructure:"main"`
	Definitions      []entity.AgentConfig `json:"definitions"        mapstructure:"definitions"`
	RunTimeout       time.Duration        `json:"run-timeout"        mapstructure:"run-timeout"`
	MaxHistoryTokens int                  `json:"max-history-tokens" mapstructure:"max-history-tokens"`
}

func NewAgentOptions() *AgentOptions {
	return &AgentOptions{
		Main: entity.AgentConfig{
			Name:         "main",
			SystemPrompt: "You are a helpful assistant.",
			Tools:        []string{entity.ToolSpawnAgent},
		},
		RunTimeout: 5 * time.Minute,
	}
}

func (o *AgentOptions) Validate() []error {
	var errs []error
	if o.Main.Name == "" {
		errs = append(errs, fmt.Errorf("agents.main.name is required"))
	}
	seen := map[string]bool{o.Main.Name: true}
	for i, d := range o.Definitions {
		switch {
		case d.Name == "":
			errs = append(errs, fmt.Errorf("agents.definitions[%d].name is required", i))
		case seen[d.Name]:
			errs = append(errs, fmt.Errorf("agents.definitions[%d]: duplicate agent name %q", i, d.Name))
		}
		seen[d.Name] = true
		if d.Lifecycle != "" && !d.Lifecycle.Valid() {
			errs = append(errs, fmt.Errorf("agents.definitions[%d].lifecycle %q is not valid", i, d.Lifecycle))
		}
	}
	if o.RunTimeout < 0 {
		errs = append(errs, fmt.Errorf("--agents.run-timeout must not be negative"))
	}
	return errs
}

func (o *AgentOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Main.Name, "agents.main.name", o.Main.Name, "Name of the agent hosting primary sessions.")
	fs.StringVar(&o.Main.SystemPrompt, "agents.main.system-prompt", o.Main.SystemPrompt, "System prompt of the main agent.")
	fs.StringVar(&o.Main.Model, "agents.main.model", o.Main.Model, "Model id of the main agent. Empty uses --model.default-model.")
	fs.DurationVar(&o.RunTimeout, "agents.run-timeout", o.RunTimeout, "Upper bound for a single run.")
	fs.IntVar(&o.MaxHistoryTokens, "agents.max-history-tokens", o.MaxHistoryTokens, "Token budget for history sent per turn. 0 keeps everything.")
}
