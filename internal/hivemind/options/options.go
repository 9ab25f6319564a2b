package options

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/service/runtime"
	"github.com/kiosk404/hivelink/internal/hivemind/service/subagent"
	genericoptions "github.com/kiosk404/hivelink/internal/pkg/options"
	"github.com/kiosk404/hivelink/internal/pkg/server"
	"github.com/kiosk404/hivelink/pkg/utils/json"
)

// Options runs the hivemind server.
type Options struct {
	GenericServerRunOptions *genericoptions.ServerRunOptions `json:"serving"   mapstructure:"serving"`
	LogOptions              *genericoptions.LogOptions       `json:"log"       mapstructure:"log"`
	ModelOptions            *genericoptions.ModelOptions     `json:"model"     mapstructure:"model"`
	AuthOptions             *AuthOptions                     `json:"auth"      mapstructure:"auth"`
	StoreOptions            *StoreOptions                    `json:"store"     mapstructure:"store"`
	AgentOptions            *AgentOptions                    `json:"agents"    mapstructure:"agents"`
	SubAgentOptions         *SubAgentOptions                 `json:"subagents" mapstructure:"subagents"`
	ApprovalOptions         *ApprovalOptions                 `json:"approvals" mapstructure:"approvals"`
	StreamOptions           *StreamOptions                   `json:"stream"    mapstructure:"stream"`
}

func NewOptions() *Options {
	return &Options{
		GenericServerRunOptions: genericoptions.NewServerRunOptions(),
		LogOptions:              genericoptions.NewLogOptions(),
		ModelOptions:            genericoptions.NewModelOptions(),
		AuthOptions:             NewAuthOptions(),
		StoreOptions:            NewStoreOptions(),
		AgentOptions:            NewAgentOptions(),
		SubAgentOptions:         NewSubAgentOptions(),
		ApprovalOptions:         NewApprovalOptions(),
		StreamOptions:           NewStreamOptions(),
	}
}

// AddFlags binds every option group to fs.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.GenericServerRunOptions.AddFlags(fs)
	o.LogOptions.AddFlags(fs)
	o.ModelOptions.AddFlags(fs)
	o.AuthOptions.AddFlags(fs)
	o.StoreOptions.AddFlags(fs)
	o.AgentOptions.AddFlags(fs)
	o.SubAgentOptions.AddFlags(fs)
	o.ApprovalOptions.AddFlags(fs)
	o.StreamOptions.AddFlags(fs)
}

// Validate checks every option group and joins the failures.
func (o *Options) Validate() error {
	var errs []error
	errs = append(errs, o.GenericServerRunOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.ModelOptions.Validate()...)
	errs = append(errs, o.AuthOptions.Validate()...)
	errs = append(errs, o.StoreOptions.Validate()...)
	errs = append(errs, o.AgentOptions.Validate()...)
	errs = append(errs, o.SubAgentOptions.Validate()...)
	errs = append(errs, o.ApprovalOptions.Validate()...)
	errs = append(errs, o.StreamOptions.Validate()...)
	return errors.Join(errs...)
}

// Complete set default Options.
func (o *Options) Complete() error {
	for i := range o.AgentOptions.Definitions {
		if o.AgentOptions.Definitions[i].Lifecycle == "" {
			o.AgentOptions.Definitions[i].Lifecycle = entity.Lifecycle(o.SubAgentOptions.DefaultLifecycle)
		}
	}
	return nil
}

// Limits returns the sub-agent limits as a fixed provider.
func (o *Options) Limits() subagent.StaticConfig {
	return subagent.StaticConfig{
		Depth:     o.SubAgentOptions.MaxDepth,
		Lifecycle: entity.Lifecycle(o.SubAgentOptions.DefaultLifecycle),
	}
}

// AgentsConfig maps the options onto the Agents module configuration.
func (o *Options) AgentsConfig() *agents.Config {
	return &agents.Config{
		StoreType:        o.StoreOptions.Type,
		BoltDBPath:       o.StoreOptions.BoltDBPath,
		RunTimeout:       o.AgentOptions.RunTimeout,
		MaxHistoryTokens: o.AgentOptions.MaxHistoryTokens,
		Model: runtime.ModelConfig{
			Provider:  o.ModelOptions.Provider,
			Model:     o.ModelOptions.DefaultModel,
			APIKey:    o.ModelOptions.APIKey,
			BaseURL:   o.ModelOptions.BaseURL,
			MaxTokens: o.ModelOptions.MaxTokens,
		},
		MainAgent:            o.AgentOptions.Main,
		Definitions:          o.AgentOptions.Definitions,
		SubAgentTimeout:      o.SubAgentOptions.Timeout,
		RequireSpawnApproval: o.ApprovalOptions.RequireForSpawn,
		ApprovalTimeout:      o.ApprovalOptions.Timeout,
		Stream:               o.StreamOptions.Config(),
	}
}

func (o *Options) String() string {
	data, _ := json.Marshal(o)

	return string(data)
}

// ApplyTo applies the run options to the generic server config.
func (o *Options) ApplyTo(c *server.Config) error {
	c.Addr = o.GenericServerRunOptions.Address()
	c.Mode = o.GenericServerRunOptions.Mode
	c.Healthz = o.GenericServerRunOptions.Healthz
	c.EnableProfiling = o.GenericServerRunOptions.EnableProfiling
	c.ShutdownTimeout = o.GenericServerRunOptions.ShutdownTimeout
	return nil
}
