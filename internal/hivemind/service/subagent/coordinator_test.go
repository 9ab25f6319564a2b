package subagent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
	"github.com/kiosk404/hivelink/internal/hivemind/service/eventbus"
	"github.com/kiosk404/hivelink/pkg/logger"
)

func init() {
	logger.SetOutput(io.Discard)
}

type fixture struct {
	sessions *fakeSessions
	factory  *fakeFactory
	bus      *eventbus.MemoryBus
	coord    *Coordinator
}

func newFixture(maxDepth int) *fixture {
	f := &fixture{
		sessions: newFakeSessions(),
		factory:  &fakeFactory{},
		bus:      eventbus.NewMemoryBus("top"),
	}
	f.coord = NewCoordinator(Dependencies{
		Sessions: f.sessions,
		Factory:  f.factory,
		Config:   StaticConfig{Depth: maxDepth, Lifecycle: entity.LifecycleEphemeral},
		Bus:      f.bus,
	})
	return f
}

func researcher() entity.AgentConfig {
	return entity.AgentConfig{Name: "researcher", Tools: []string{"read_file"}}
}

func TestSpawn_TopLevelParent(t *testing.T) {
	f := newFixture(1)
	f.sessions.add("root", "")

	var spawned []entity.SubAgentInfo
	_, err := f.bus.Subscribe(context.Background(), eventbus.EventSubAgentSpawned, func(ev eventbus.Event) {
		spawned = append(spawned, ev.Payload.(entity.SubAgentInfo))
	})
	require.NoError(t, err)

	h, err := f.coord.Spawn(context.Background(), SpawnRequest{
		ParentSessionID: "root",
		Source:          FromConfig(researcher()),
		Description:     "find the bug",
	})
	require.NoError(t, err)

	info := h.Info()
	assert.Equal(t, 1, info.Depth)
	assert.Equal(t, "root", info.ParentSessionID)
	assert.Equal(t, "researcher", info.Type)
	assert.Equal(t, entity.LifecycleEphemeral, info.Lifecycle)
	assert.Equal(t, "find the bug", info.Description)

	child := f.factory.last()
	require.NotNil(t, child)
	meta := child.metas[h.SessionID()]
	assert.Equal(t, entity.SessionTypeSubAgent, meta.Type)
	assert.Equal(t, "root", meta.ParentSessionID)
	assert.Equal(t, info.AgentID, meta.AgentID)
	assert.Equal(t, 1, meta.Depth)
	assert.Equal(t, "find the bug", meta.Description)

	require.Len(t, spawned, 1)
	assert.Equal(t, info.AgentID, spawned[0].AgentID)
}

func TestSpawn_Depth(t *testing.T) {
	f := newFixture(3)
	f.sessions.add("root", "")
	f.sessions.add("d1", "root")
	f.sessions.add("d2", "d1")
	f.sessions.add("d3", "d2")

	for parent, want := range map[string]int{"root": 1, "d1": 2, "d2": 3} {
		h, err := f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: parent, Source: FromConfig(researcher())})
		require.NoError(t, err, parent)
		assert.Equal(t, want, h.Info().Depth, parent)
	}

	_, err := f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "d3", Source: FromConfig(researcher())})
	require.ErrorIs(t, err, errno.ErrDepthExceeded)
	assert.Contains(t, err.Error(), "subagents.max-depth")
}

func TestSpawn_DefaultMaxDepthIsOne(t *testing.T) {
	f := newFixture(0)
	f.sessions.add("root", "")
	f.sessions.add("child", "root")

	_, err := f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "root", Source: FromConfig(researcher())})
	require.NoError(t, err)

	_, err = f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "child", Source: FromConfig(researcher())})
	assert.ErrorIs(t, err, errno.ErrDepthExceeded)
}

func TestSessionDepth_TerminatesOnCycleAndMissingLinks(t *testing.T) {
	sessions := newFakeSessions()
	sessions.add("a", "b")
	sessions.add("b", "a")
	sessions.add("orphan", "gone")

	assert.Equal(t, 1, sessionDepth(context.Background(), sessions, "a"))
	assert.Equal(t, 1, sessionDepth(context.Background(), sessions, "orphan"))
	assert.Equal(t, 0, sessionDepth(context.Background(), sessions, "unknown"))

	long := newFakeSessions()
	long.add("s0", "")
	for i := 1; i <= 100; i++ {
		long.add(fmt.Sprintf("s%d", i), fmt.Sprintf("s%d", i-1))
	}
	assert.Equal(t, maxDepthWalk, sessionDepth(context.Background(), long, "s100"))
}

func TestSpawn_Validation(t *testing.T) {
	f := newFixture(1)
	f.sessions.add("root", "")

	_, err := f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "missing", Source: FromConfig(researcher())})
	assert.ErrorIs(t, err, errno.ErrParentNotFound)

	for _, tool := range []string{entity.ToolSpawnAgent, entity.ToolAskUser} {
		cfg := researcher()
		cfg.Tools = append(cfg.Tools, tool)
		_, err = f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "root", Source: FromConfig(cfg)})
		assert.ErrorIs(t, err, errno.ErrInvalidSubAgentConfig, tool)

		_, err = f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "root", Source: FromInstance(newFakeAgent(cfg))})
		assert.ErrorIs(t, err, errno.ErrInvalidSubAgentConfig, tool)
	}

	_, err = f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "root"})
	assert.ErrorIs(t, err, errno.ErrInvalidSubAgentConfig)

	_, err = f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "root", Source: FromConfig(researcher()), Lifecycle: "forever"})
	assert.ErrorIs(t, err, errno.ErrInvalidSubAgentConfig)

	assert.Empty(t, f.factory.built)
}

func TestSpawn_SessionLookupFailure(t *testing.T) {
	f := newFixture(1)
	f.sessions.add("root", "")
	storeErr := errors.New("bolt: database not open")
	f.sessions.getErr = storeErr

	_, err := f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "root", Source: FromConfig(researcher())})
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, errno.ErrParentNotFound)
	assert.Empty(t, f.factory.built)
}

func TestSpawn_SessionCreationFailure(t *testing.T) {
	f := newFixture(1)
	f.sessions.add("root", "")
	f.factory.prepare = func(a *fakeAgent) { a.createErr = errBoom }

	_, err := f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "root", Source: FromConfig(researcher())})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, f.factory.last().stopCount())

	instance := newFakeAgent(researcher())
	instance.createErr = errBoom
	_, err = f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "root", Source: FromInstance(instance)})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, instance.stopCount())
	assert.Empty(t, f.coord.GetActiveSubAgents("root"))
}

func TestSpawn_ConfigIsCopied(t *testing.T) {
	f := newFixture(1)
	f.sessions.add("root", "")

	cfg := researcher()
	_, err := f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "root", Source: FromConfig(cfg)})
	require.NoError(t, err)

	cfg.Tools[0] = "mutated"
	assert.Equal(t, []string{"read_file"}, f.factory.last().cfg.Tools)
}

func TestCleanup_Lifecycles(t *testing.T) {
	f := newFixture(1)
	f.sessions.add("root", "")

	eph, err := f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "root", Source: FromConfig(researcher())})
	require.NoError(t, err)
	ephAgent := f.factory.last()

	persistentAgent := newFakeAgent(researcher())
	per, err := f.coord.Spawn(context.Background(), SpawnRequest{
		ParentSessionID: "root",
		Source:          FromInstance(persistentAgent),
		Lifecycle:       entity.LifecyclePersistent,
	})
	require.NoError(t, err)

	var completed []string
	_, err = f.bus.Subscribe(context.Background(), eventbus.EventSubAgentCompleted, func(ev eventbus.Event) {
		completed = append(completed, ev.Payload.(entity.SubAgentInfo).AgentID)
	})
	require.NoError(t, err)

	require.NoError(t, f.coord.Cleanup(context.Background(), eph.Info().AgentID))
	require.NoError(t, f.coord.Cleanup(context.Background(), eph.Info().AgentID))
	assert.Equal(t, 1, ephAgent.stopCount())

	require.NoError(t, f.coord.Cleanup(context.Background(), per.Info().AgentID))
	assert.Equal(t, 0, persistentAgent.stopCount())
	assert.Equal(t, []string{per.SessionID()}, persistentAgent.ended)

	assert.Equal(t, []string{eph.Info().AgentID, per.Info().AgentID}, completed)
	assert.NoError(t, f.coord.Cleanup(context.Background(), "never-spawned"))
}

func TestCleanup_ReturnsTeardownError(t *testing.T) {
	f := newFixture(1)
	f.sessions.add("root", "")
	f.factory.prepare = func(a *fakeAgent) { a.stopErr = errBoom }

	h, err := f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "root", Source: FromConfig(researcher())})
	require.NoError(t, err)

	err = f.coord.Cleanup(context.Background(), h.Info().AgentID)
	assert.ErrorIs(t, err, errBoom)

	_, ok := f.coord.Get(h.Info().AgentID)
	assert.False(t, ok)
	assert.NoError(t, f.coord.Cleanup(context.Background(), h.Info().AgentID))
}

func TestConcurrentSubAgents(t *testing.T) {
	f := newFixture(1)
	f.sessions.add("root", "")
	f.sessions.add("other", "")

	const n = 8
	handles := make([]*Handle, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "root", Source: FromConfig(researcher())})
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()
	_, err := f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "other", Source: FromConfig(researcher())})
	require.NoError(t, err)

	active := f.coord.GetActiveSubAgents("root")
	require.Len(t, active, n)
	ids := make(map[string]struct{})
	for _, a := range active {
		ids[a.AgentID] = struct{}{}
		assert.Equal(t, 1, a.Depth)
		assert.GreaterOrEqual(t, a.Duration, time.Duration(0))
	}
	assert.Len(t, ids, n)

	require.NoError(t, f.coord.Cleanup(context.Background(), handles[0].Info().AgentID))
	assert.Len(t, f.coord.GetActiveSubAgents("root"), n-1)
	assert.Len(t, f.coord.GetActiveSubAgents("other"), 1)

	require.NoError(t, f.coord.CleanupAll(context.Background()))
	assert.Empty(t, f.coord.GetActiveSubAgents("root"))
	assert.Empty(t, f.coord.GetActiveSubAgents("other"))
}

func TestSpawn_ForwardsExecutionSessionEvents(t *testing.T) {
	f := newFixture(1)
	parent := f.sessions.add("root", "")

	h, err := f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "root", Source: FromConfig(researcher())})
	require.NoError(t, err)
	child := f.factory.last()

	var lifecycle []eventbus.Event
	_, err = parent.bus.Subscribe(context.Background(), eventbus.EventLLMChunk, func(ev eventbus.Event) {
		lifecycle = append(lifecycle, ev)
	})
	require.NoError(t, err)
	var approvals []eventbus.Event
	_, err = f.bus.Subscribe(context.Background(), eventbus.EventApprovalRequest, func(ev eventbus.Event) {
		approvals = append(approvals, ev)
	})
	require.NoError(t, err)

	child.bus.Publish(eventbus.Event{Name: eventbus.EventLLMChunk, SessionID: h.SessionID(), Payload: "hello"})
	child.bus.Publish(eventbus.Event{Name: eventbus.EventLLMChunk, SessionID: "unrelated", Payload: "nope"})
	child.bus.Publish(eventbus.Event{
		Name:      eventbus.EventApprovalRequest,
		SessionID: h.SessionID(),
		Payload:   entity.ApprovalRequest{ApprovalID: "a1", SessionID: h.SessionID()},
	})

	require.Len(t, lifecycle, 1)
	assert.Equal(t, "hello", lifecycle[0].Payload)
	assert.Equal(t, true, lifecycle[0].Meta[eventbus.MetaFromSubAgent])
	assert.Equal(t, h.SessionID(), lifecycle[0].Meta[eventbus.MetaSubAgentSessionID])
	assert.Equal(t, "researcher", lifecycle[0].Meta[eventbus.MetaSubAgentType])
	assert.Equal(t, 1, lifecycle[0].Meta[eventbus.MetaDepth])

	require.Len(t, approvals, 1)
	assert.Equal(t, "root", approvals[0].SessionID)
	assert.Equal(t, "root", approvals[0].Payload.(entity.ApprovalRequest).SessionID)

	require.NoError(t, f.coord.Cleanup(context.Background(), h.Info().AgentID))
	child.bus.Publish(eventbus.Event{Name: eventbus.EventLLMChunk, SessionID: h.SessionID(), Payload: "late"})
	assert.Len(t, lifecycle, 1)
}

func TestHandle_Run(t *testing.T) {
	f := newFixture(1)
	f.sessions.add("root", "")

	h, err := f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "root", Source: FromConfig(researcher())})
	require.NoError(t, err)

	out, err := h.Run(context.Background(), "summarize")
	require.NoError(t, err)
	assert.Equal(t, "done: summarize", out)

	_, ok := f.coord.Get(h.Info().AgentID)
	assert.False(t, ok)
	assert.Equal(t, 1, f.factory.last().stopCount())
}

func TestHandle_RunTimeout(t *testing.T) {
	f := newFixture(1)
	f.sessions.add("root", "")
	f.factory.prepare = func(a *fakeAgent) {
		a.runFn = func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}
	}

	h, err := f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "root", Source: FromConfig(researcher())})
	require.NoError(t, err)
	child := f.factory.last()
	session := child.session(h.SessionID())

	start := time.Now()
	_, err = h.Run(context.Background(), "loop forever", WithTimeout(50*time.Millisecond))
	require.ErrorIs(t, err, errno.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, 1, session.cancelCount())
	_, ok := f.coord.Get(h.Info().AgentID)
	assert.False(t, ok)
	assert.Equal(t, 1, child.stopCount())
}

func TestHandle_RunJoinsCleanupError(t *testing.T) {
	f := newFixture(1)
	f.sessions.add("root", "")
	f.factory.prepare = func(a *fakeAgent) {
		a.stopErr = errBoom
		a.runFn = func(context.Context, string) (string, error) { return "", errno.ErrAborted }
	}

	h, err := f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "root", Source: FromConfig(researcher())})
	require.NoError(t, err)

	_, err = h.Run(context.Background(), "task")
	assert.ErrorIs(t, err, errno.ErrAborted)
	assert.ErrorIs(t, err, errBoom)
}

func TestCancel(t *testing.T) {
	f := newFixture(1)
	f.sessions.add("root", "")
	started := make(chan struct{})
	f.factory.prepare = func(a *fakeAgent) {
		a.runFn = func(ctx context.Context, _ string) (string, error) {
			close(started)
			<-ctx.Done()
			return "", ctx.Err()
		}
	}

	assert.False(t, f.coord.Cancel("unknown"))

	h, err := f.coord.Spawn(context.Background(), SpawnRequest{ParentSessionID: "root", Source: FromConfig(researcher())})
	require.NoError(t, err)
	assert.False(t, f.coord.Cancel(h.Info().AgentID))

	errCh := make(chan error, 1)
	go func() {
		_, err := h.Run(context.Background(), "task")
		errCh <- err
	}()
	<-started

	assert.True(t, f.coord.Cancel(h.Info().AgentID))
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}
