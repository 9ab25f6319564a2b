package boltdb

import (
	"context"
	"fmt"

	"github.com/boltdb/bolt"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
	"github.com/kiosk404/hivelink/pkg/utils/json"
)

// AgentStore implements repo.AgentRepository using BoltDB. Definitions are keyed by name.
type AgentStore struct {
	db *bolt.DB
}

// NewAgentStore creates a new BoltDB-backed AgentStore.
func NewAgentStore(db *DB) *AgentStore {
	return &AgentStore{db: db.Bolt()}
}

// Save creates or replaces a definition.
func (s *AgentStore) Save(_ context.Context, cfg *entity.AgentConfig) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgentStore)
		data, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal agent: %w", err)
		}
		return b.Put([]byte(cfg.Name), data)
	})
}

// Get retrieves a definition by name.
func (s *AgentStore) Get(_ context.Context, name string) (*entity.AgentConfig, error) {
	var cfg entity.AgentConfig
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgentStore)
		data := b.Get([]byte(name))
		if data == nil {
			return errno.ErrAgentNotFound
		}
		return json.Unmarshal(data, &cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get agent %q: %w", name, err)
	}
	return &cfg, nil
}

// Delete removes a definition.
func (s *AgentStore) Delete(_ context.Context, name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgentStore)
		return b.Delete([]byte(name))
	})
}

// List returns all definitions, ordered by name.
func (s *AgentStore) List(_ context.Context) ([]*entity.AgentConfig, error) {
	var agents []*entity.AgentConfig
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgentStore)
		return b.ForEach(func(k, v []byte) error {
			var cfg entity.AgentConfig
			if err := json.Unmarshal(v, &cfg); err != nil {
				return fmt.Errorf("failed to unmarshal agent: %w", err)
			}
			agents = append(agents, &cfg)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return agents, nil
}
