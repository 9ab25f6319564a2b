package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
)

// SessionStore is an in-memory implementation of repo.SessionRepository.
// Values are copied in and out so callers never share state with the store.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]entity.SessionMetadata
}

// NewSessionStore creates a new instance of the SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]entity.SessionMetadata),
	}
}

func (s *SessionStore) Create(_ context.Context, session *entity.SessionMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*entity.SessionMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, errno.ErrSessionNotFound
	}
	return &session, nil
}

func (s *SessionStore) Update(_ context.Context, session *entity.SessionMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Check if the session exists
	if _, ok := s.sessions[session.ID]; !ok {
		return errno.ErrSessionNotFound
	}
	s.sessions[session.ID] = *session
	return nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Check if the session exists
	if _, ok := s.sessions[id]; !ok {
		return errno.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *SessionStore) ListByAgent(_ context.Context, agentID string) ([]*entity.SessionMetadata, error) {
	return s.list(func(m entity.SessionMetadata) bool { return m.AgentID == agentID }), nil
}

func (s *SessionStore) ListChildren(_ context.Context, parentID string) ([]*entity.SessionMetadata, error) {
	return s.list(func(m entity.SessionMetadata) bool { return m.ParentSessionID == parentID }), nil
}

func (s *SessionStore) list(match func(entity.SessionMetadata) bool) []*entity.SessionMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]*entity.SessionMetadata, 0)
	for _, session := range s.sessions {
		if match(session) {
			session := session
			sessions = append(sessions, &session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].CreatedAt.Before(sessions[j].CreatedAt) })
	return sessions
}
