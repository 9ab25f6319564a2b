package errno

import (
	"errors"
)

var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionBusy           = errors.New("session is already running")
	ErrAgentNotFound         = errors.New("agent not found")
	ErrAgentStopped          = errors.New("agent stopped")
	ErrParentNotFound        = errors.New("parent session not found")
	ErrDepthExceeded         = errors.New("sub-agent depth exceeded")
	ErrInvalidSubAgentConfig = errors.New("invalid sub-agent config")
	ErrSubAgentNotFound      = errors.New("sub-agent not found")
	ErrTimeout               = errors.New("sub-agent run timed out")
	ErrAborted               = errors.New("run aborted")
	ErrInvalidApproval       = errors.New("invalid approval request")
	ErrDuplicateApproval     = errors.New("approval already pending")
	ErrApprovalNotFound      = errors.New("approval not found")
	ErrSpawnDenied           = errors.New("sub-agent spawn was not approved")
	ErrNoStreamState         = errors.New("no stream state for session")
	ErrBusClosed             = errors.New("event bus closed")
	ErrForwarderDisposed     = errors.New("event forwarder disposed")
)
