package runtime

import (
	"time"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg"
	"github.com/kiosk404/hivelink/pkg/logger"
)

// RunStateMachine tracks one session run.
// State machine: InProgress -> Completed | Failed | Cancelled
type RunStateMachine struct {
	sessionID string
	runID     string
	status    entity.RunStatus
	startedAt time.Time
}

// NewRunStateMachine starts tracking a run in the InProgress state.
func NewRunStateMachine(sessionID, runID string) *RunStateMachine {
	logger.DebugX(pkg.ModuleName, "[RunState] run %s of session %s -> in_progress", runID, sessionID)
	return &RunStateMachine{
		sessionID: sessionID,
		runID:     runID,
		status:    entity.RunStatusInProgress,
		startedAt: time.Now(),
	}
}

// Done reports whether the run reached a final state.
func (sm *RunStateMachine) Done() bool {
	return sm.status != entity.RunStatusInProgress
}

// TransitionToCompleted marks the run completed.
func (sm *RunStateMachine) TransitionToCompleted() {
	sm.transition(entity.RunStatusCompleted)
}

// TransitionToFailed marks the run failed.
func (sm *RunStateMachine) TransitionToFailed(err error) {
	if sm.transition(entity.RunStatusFailed) {
		logger.ErrorX(pkg.ModuleName, "[RunState] run %s of session %s failed: %v", sm.runID, sm.sessionID, err)
	}
}

// TransitionToCancelled marks the run cancelled.
func (sm *RunStateMachine) TransitionToCancelled() {
	sm.transition(entity.RunStatusCancelled)
}

// Status returns the current status.
func (sm *RunStateMachine) Status() entity.RunStatus {
	return sm.status
}

// Elapsed is the time since the run started.
func (sm *RunStateMachine) Elapsed() time.Duration {
	return time.Since(sm.startedAt)
}

func (sm *RunStateMachine) transition(to entity.RunStatus) bool {
	if sm.Done() {
		return false
	}
	sm.status = to
	logger.InfoX(pkg.ModuleName, "[RunState] run %s of session %s -> %s after %s",
		sm.runID, sm.sessionID, to, sm.Elapsed().Round(time.Millisecond))
	return true
}
