package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

type ApprovalOptions struct {
	RequireForSpawn bool          `json:"require-for-spawn" mapstructure:"require-for-spawn"`
	Timeout         time.Duration `json:"timeout"           mapstructure:"timeout"`
}

func NewApprovalOptions() *ApprovalOptions {
	return &ApprovalOptions{Timeout: 5 * time.Minute}
}

func (o *ApprovalOptions) Validate() []error {
	if o.Timeout < 0 {
		return []error{fmt.Errorf("--approvals.timeout must not be negative")}
	}
	return nil
}

func (o *ApprovalOptions) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.RequireForSpawn, "approvals.require-for-spawn", o.RequireForSpawn, "Ask a human before every sub-agent spawn.")
	fs.DurationVar(&o.Timeout, "approvals.timeout", o.Timeout, "How long an approval waits before it is cancelled. 0 waits indefinitely.")
}
