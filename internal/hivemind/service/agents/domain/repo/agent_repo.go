package repo

import (
	"context"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
)

// AgentRepository stores named agent definitions that sub-agents can be spawned from.
type AgentRepository interface {
	// Save creates or replaces the definition named cfg.Name.
	Save(ctx context.Context, cfg *entity.AgentConfig) error
	// Get retrieves a definition by name.
	Get(ctx context.Context, name string) (*entity.AgentConfig, error)
	// Delete removes a definition by name.
	Delete(ctx context.Context, name string) error
	// List returns all definitions.
	List(ctx context.Context) ([]*entity.AgentConfig, error)
}
