package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
)

// SubAgentOptions bounds sub-agent recursion and runtime.
type SubAgentOptions struct {
	// MaxDepth is the deepest nesting allowed below a primary session.
	MaxDepth         int           `json:"max-depth"         mapstructure:"max-depth"`
	DefaultLifecycle string        `json:"default-lifecycle" mapstructure:"default-lifecycle"`
	Timeout          time.Duration `json:"timeout"           mapstructure:"timeout"`
}

func NewSubAgentOptions() *SubAgentOptions {
	return &SubAgentOptions{
		MaxDepth:         1,
		DefaultLifecycle: string(entity.LifecycleEphemeral),
		Timeout:          10 * time.Minute,
	}
}

func (o *SubAgentOptions) Validate() []error {
	var errs []error
	if o.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("--subagents.max-depth must be at least 1, got %d", o.MaxDepth))
	}
	if !entity.Lifecycle(o.DefaultLifecycle).Valid() {
		errs = append(errs, fmt.Errorf("--subagents.default-lifecycle %q must be ephemeral or persistent", o.DefaultLifecycle))
	}
	if o.Timeout < 0 {
		errs = append(errs, fmt.Errorf("--subagents.timeout must not be negative"))
	}
	return errs
}

func (o *SubAgentOptions) AddFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.MaxDepth, "subagents.max-depth", o.MaxDepth, "Maximum sub-agent nesting depth. Sub-agents at this depth cannot spawn.")
	fs.StringVar(&o.DefaultLifecycle, "subagents.default-lifecycle", o.DefaultLifecycle, "Lifecycle used when a spawn does not name one: ephemeral or persistent.")
	fs.DurationVar(&o.Timeout, "subagents.timeout", o.Timeout, "Upper bound for a single sub-agent task.")
}
