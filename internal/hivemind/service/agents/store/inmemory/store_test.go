package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
)

func TestSessionStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	now := time.Now()

	meta := &entity.SessionMetadata{ID: "s1", AgentID: "main", CreatedAt: now}
	require.NoError(t, store.Create(ctx, meta))
	meta.Title = "mutated after create"

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got.Title)

	got.Title = "mutated after get"
	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, again.Title)

	require.NoError(t, store.Create(ctx, &entity.SessionMetadata{ID: "c2", ParentSessionID: "s1", CreatedAt: now.Add(2 * time.Second)}))
	require.NoError(t, store.Create(ctx, &entity.SessionMetadata{ID: "c1", ParentSessionID: "s1", CreatedAt: now.Add(time.Second)}))
	children, err := store.ListChildren(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "c1", children[0].ID)
	assert.Equal(t, "c2", children[1].ID)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, errno.ErrSessionNotFound)
	assert.ErrorIs(t, store.Update(ctx, meta), errno.ErrSessionNotFound)
}

func TestAgentStore_DeepCopies(t *testing.T) {
	ctx := context.Background()
	store := NewAgentStore()

	cfg := &entity.AgentConfig{Name: "reviewer", Tools: []string{"read_file"}}
	require.NoError(t, store.Save(ctx, cfg))
	cfg.Tools[0] = "rm_rf"

	got, err := store.Get(ctx, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, []string{"read_file"}, got.Tools)

	require.NoError(t, store.Save(ctx, &entity.AgentConfig{Name: "coder"}))
	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "coder", all[0].Name)

	require.NoError(t, store.Delete(ctx, "reviewer"))
	_, err = store.Get(ctx, "reviewer")
	assert.ErrorIs(t, err, errno.ErrAgentNotFound)
}
