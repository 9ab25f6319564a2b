package repo

import (
	"context"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
)

// SessionRepository defines the persistence interface for session metadata.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *entity.SessionMetadata) error
	// Get retrieves a session by ID.
	Get(ctx context.Context, id string) (*entity.SessionMetadata, error)
	// Update updates an existing session.
	Update(ctx context.Context, session *entity.SessionMetadata) error
	// Delete removes a session by ID.
	Delete(ctx context.Context, id string) error
	// ListByAgent returns all sessions for a given agent.
	ListByAgent(ctx context.Context, agentID string) ([]*entity.SessionMetadata, error)
	// ListChildren returns the sessions spawned under parentID.
	ListChildren(ctx context.Context, parentID string) ([]*entity.SessionMetadata, error)
}
