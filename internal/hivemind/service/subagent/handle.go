package subagent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
	"github.com/kiosk404/hivelink/pkg/logger"
)

type runOptions struct {
	timeout time.Duration
}

// RunOption configures Handle.Run.
type RunOption func(*runOptions)

// WithTimeout bounds the run. Zero or negative means no bound.
func WithTimeout(d time.Duration) RunOption {
	return func(o *runOptions) { o.timeout = d }
}

// Handle is the caller's capability over one spawned sub-agent.
type Handle struct {
	sub   SubAgentContext
	coord *Coordinator
}

// Run executes task on the execution session and then cleans the sub-agent up, on
// success, failure and timeout alike. A cleanup failure is joined onto the result.
func (h *Handle) Run(ctx context.Context, task string, opts ...RunOption) (string, error) {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}

	result, err := h.run(ctx, task, o)
	if cleanupErr := h.coord.Cleanup(context.WithoutCancel(ctx), h.sub.Info.AgentID); cleanupErr != nil {
		err = errors.Join(err, cleanupErr)
	}
	return result, err
}

type runResult struct {
	text string
	err  error
}

func (h *Handle) run(ctx context.Context, task string, o runOptions) (string, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan runResult, 1)
	go func() {
		text, err := h.sub.Session.Run(runCtx, task)
		done <- runResult{text: text, err: err}
	}()

	var expired <-chan time.Time
	if o.timeout > 0 {
		timer := time.NewTimer(o.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case r := <-done:
		return r.text, r.err
	case <-expired:
		h.sub.Session.Cancel()
		logger.WarnX(pkg.SubAgentModuleName, "[SubAgent] %s timed out after %s", h.sub.Info.AgentID, o.timeout)
		return "", fmt.Errorf("%w: %s exceeded %s", errno.ErrTimeout, h.sub.Info.AgentID, o.timeout)
	}
}

// Cancel aborts the running task.
func (h *Handle) Cancel() bool {
	return h.sub.Session.Cancel()
}

// Info returns the spawn description.
func (h *Handle) Info() entity.SubAgentInfo {
	return h.sub.Info
}

// SessionID returns the execution session id.
func (h *Handle) SessionID() string {
	return h.sub.Info.SessionID
}

// Agent returns the child agent.
func (h *Handle) Agent() Agent {
	return h.sub.Agent
}
