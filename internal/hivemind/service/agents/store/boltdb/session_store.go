package boltdb

import (
	"context"
	"fmt"
	"sort"

	"github.com/boltdb/bolt"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
	"github.com/kiosk404/hivelink/pkg/utils/json"
)

// SessionStore implements repo.SessionRepository using BoltDB.
type SessionStore struct {
	boltDB *bolt.DB
}

// NewSessionStore creates a new SessionStore instance.
func NewSessionStore(boltDB *DB) *SessionStore {
	return &SessionStore{boltDB: boltDB.Bolt()}
}

func (s *SessionStore) Create(_ context.Context, session *entity.SessionMetadata) error {
	return s.boltDB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessionStore)
		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		return b.Put([]byte(session.ID), data)
	})
}

func (s *SessionStore) Get(_ context.Context, id string) (*entity.SessionMetadata, error) {
	var session entity.SessionMetadata
	err := s.boltDB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessionStore)
		data := b.Get([]byte(id))
		if data == nil {
			return errno.ErrSessionNotFound
		}
		return json.Unmarshal(data, &session)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get session %q: %w", id, err)
	}
	return &session, nil
}

func (s *SessionStore) Update(_ context.Context, session *entity.SessionMetadata) error {
	return s.boltDB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessionStore)
		if b.Get([]byte(session.ID)) == nil {
			return fmt.Errorf("session %q: %w", session.ID, errno.ErrSessionNotFound)
		}
		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		return b.Put([]byte(session.ID), data)
	})
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	return s.boltDB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessionStore)
		return b.Delete([]byte(id))
	})
}

func (s *SessionStore) ListByAgent(_ context.Context, agentID string) ([]*entity.SessionMetadata, error) {
	sessions, err := s.list(func(m *entity.SessionMetadata) bool { return m.AgentID == agentID })
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions by agent %q: %w", agentID, err)
	}
	return sessions, nil
}

func (s *SessionStore) ListChildren(_ context.Context, parentID string) ([]*entity.SessionMetadata, error) {
	sessions, err := s.list(func(m *entity.SessionMetadata) bool { return m.ParentSessionID == parentID })
	if err != nil {
		return nil, fmt.Errorf("failed to list children of session %q: %w", parentID, err)
	}
	return sessions, nil
}

func (s *SessionStore) list(match func(*entity.SessionMetadata) bool) ([]*entity.SessionMetadata, error) {
	var sessions []*entity.SessionMetadata
	err := s.boltDB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessionStore)
		return b.ForEach(func(k, v []byte) error {
			var session entity.SessionMetadata
			if err := json.Unmarshal(v, &session); err != nil {
				return fmt.Errorf("failed to unmarshal session: %w", err)
			}
			if match(&session) {
				sessions = append(sessions, &session)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].CreatedAt.Before(sessions[j].CreatedAt) })
	return sessions, nil
}
