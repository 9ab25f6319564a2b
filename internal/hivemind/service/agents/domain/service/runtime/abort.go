package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
	"github.com/kiosk404/hivelink/pkg/logger"
)

// AbortController manages cancellation and timeout of one session run.
//
//   - Abort() for external cancellation (Session.Cancel)
//   - an optional timeout for automatic cancellation
//   - thread-safe abort state tracking
type AbortController struct {
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	down   bool
	runID  string
}

// NewAbortController creates a controller deriving from parent. A positive timeout
// cancels the run automatically once it elapses.
func NewAbortController(parent context.Context, runID string, timeout time.Duration) *AbortController {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	return &AbortController{
		ctx:    ctx,
		cancel: cancel,
		runID:  runID,
	}
}

// Context returns the controlled context.
// Use this context for all downstream operations.
func (ac *AbortController) Context() context.Context {
	return ac.ctx
}

// Abort cancels the run. Returns false if it was already aborted or finished.
func (ac *AbortController) Abort() bool {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if ac.down || ac.ctx.Err() != nil {
		return false
	}
	ac.down = true
	ac.cancel()
	logger.InfoX(pkg.ModuleName, "[AbortController] abort run %s", ac.runID)
	return true
}

// IsAborted returns true if the run is aborted or its context ended.
func (ac *AbortController) IsAborted() bool {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.down || ac.ctx.Err() != nil
}

// CheckAborted returns errno.ErrAborted if the run is aborted.
func (ac *AbortController) CheckAborted() error {
	if ac.IsAborted() {
		return errno.ErrAborted
	}
	return nil
}

// CleanUp releases the context once the run is over.
func (ac *AbortController) CleanUp() {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.down = true
	ac.cancel()
}
