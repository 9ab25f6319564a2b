package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/jinzhu/copier"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
)

// AgentStore is an in-memory implementation of repo.AgentRepository.
type AgentStore struct {
	mu     sync.RWMutex
	agents map[string]*entity.AgentConfig
}

// NewAgentStore creates a new AgentStore instance.
func NewAgentStore() *AgentStore {
	return &AgentStore{
		agents: make(map[string]*entity.AgentConfig),
	}
}

// Save stores a deep copy of cfg under its name.
func (s *AgentStore) Save(_ context.Context, cfg *entity.AgentConfig) error {
	stored, err := clone(cfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[cfg.Name] = stored
	return nil
}

// Get returns a copy of the definition named name.
func (s *AgentStore) Get(_ context.Context, name string) (*entity.AgentConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.agents[name]
	if !ok {
		return nil, errno.ErrAgentNotFound
	}
	return clone(cfg)
}

// Delete deletes a definition by name.
func (s *AgentStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[name]; !ok {
		return errno.ErrAgentNotFound
	}
	delete(s.agents, name)
	return nil
}

// List returns all definitions sorted by name.
func (s *AgentStore) List(_ context.Context) ([]*entity.AgentConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agents := make([]*entity.AgentConfig, 0, len(s.agents))
	for _, cfg := range s.agents {
		c, err := clone(cfg)
		if err != nil {
			return nil, err
		}
		agents = append(agents, c)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	return agents, nil
}

func clone(cfg *entity.AgentConfig) (*entity.AgentConfig, error) {
	out := &entity.AgentConfig{}
	if err := copier.CopyWithOption(out, cfg, copier.Option{DeepCopy: true}); err != nil {
		return nil, err
	}
	return out, nil
}
