package runtime

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/store/inmemory"
	"github.com/kiosk404/hivelink/internal/hivemind/service/eventbus"
	"github.com/kiosk404/hivelink/pkg/logger"
)

func init() {
	logger.SetOutput(io.Discard)
}

// fakeModel streams fixed chunks. With block set it waits for ctx before ending.
type fakeModel struct {
	chunks []string
	err    error
	block  bool

	mu     sync.Mutex
	inputs [][]*schema.Message
}

func (f *fakeModel) Generate(ctx context.Context, input []*schema.Message, _ ...einoModel.Option) (*schema.Message, error) {
	sr, err := f.Stream(ctx, input)
	if err != nil {
		return nil, err
	}
	var chunks []*schema.Message
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return schema.ConcatMessages(chunks)
		}
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, msg)
	}
}

func (f *fakeModel) Stream(ctx context.Context, input []*schema.Message, _ ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	sr, sw := schema.Pipe[*schema.Message](len(f.chunks) + 1)
	go func() {
		defer sw.Close()
		for _, c := range f.chunks {
			sw.Send(schema.AssistantMessage(c, nil), nil)
		}
		if f.block {
			<-ctx.Done()
			sw.Send(nil, ctx.Err())
		}
	}()
	return sr, nil
}

func (f *fakeModel) lastInput() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inputs[len(f.inputs)-1]
}

func newTestRuntime(m *fakeModel, cfg Config) *Runtime {
	return New(inmemory.NewSessionStore(), func(context.Context, entity.AgentConfig) (einoModel.BaseChatModel, error) {
		return m, nil
	}, cfg)
}

func newTestSession(t *testing.T, m *fakeModel) (*Runtime, *LocalAgent, *LocalSession) {
	t.Helper()
	rt := newTestRuntime(m, Config{})
	agent, err := rt.NewLocalAgent(context.Background(), entity.AgentConfig{Name: "main", SystemPrompt: "be brief"})
	require.NoError(t, err)
	s, err := agent.OpenSession(context.Background(), entity.SessionMetadata{})
	require.NoError(t, err)
	return rt, agent, s
}

type recorder struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (r *recorder) handle(ev eventbus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, ev := range r.events {
		names[i] = ev.Name
	}
	return names
}

func (r *recorder) all() []eventbus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]eventbus.Event(nil), r.events...)
}

func record(t *testing.T, bus eventbus.Bus, names ...string) *recorder {
	t.Helper()
	r := &recorder{}
	for _, name := range names {
		_, err := bus.Subscribe(context.Background(), name, r.handle)
		require.NoError(t, err)
	}
	return r
}

func TestSession_Run(t *testing.T) {
	m := &fakeModel{chunks: []string{"hel", "lo"}}
	rt, agent, s := newTestSession(t, m)
	rec := record(t, agent.Bus(), eventbus.LifecycleEvents...)

	out, err := s.Run(context.Background(), "Find the bug\nin the parser")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	assert.Equal(t, []string{
		eventbus.EventRunStarted,
		eventbus.EventLLMChunk,
		eventbus.EventLLMChunk,
		eventbus.EventLLMResponse,
		eventbus.EventRunCompleted,
		eventbus.EventSessionTitleUpdated,
	}, rec.names())
	for _, ev := range rec.all() {
		assert.Equal(t, s.ID(), ev.SessionID)
	}

	meta, err := rt.GetSessionMetadata(context.Background(), s.ID())
	require.NoError(t, err)
	assert.Equal(t, "Find the bug", meta.Title)
	assert.Equal(t, agent.ID(), meta.AgentID)
	assert.Equal(t, entity.SessionTypePrimary, meta.Type)

	input := m.lastInput()
	require.Len(t, input, 2)
	assert.Equal(t, schema.System, input[0].Role)
	assert.Equal(t, "be brief", input[0].Content)

	_, err = s.Run(context.Background(), "again")
	require.NoError(t, err)
	assert.Len(t, m.lastInput(), 4)
	assert.Len(t, s.History(), 4)
}

func TestSession_StreamEvents(t *testing.T) {
	_, _, s := newTestSession(t, &fakeModel{chunks: []string{"a", "b"}})

	sr, err := s.Stream(context.Background(), "hi")
	require.NoError(t, err)

	var types []entity.EventType
	var last *entity.AgentEvent
	for {
		ev, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		types = append(types, ev.Type)
		last = ev
	}
	assert.Equal(t, []entity.EventType{entity.EventRunStatus, entity.EventTextDelta, entity.EventTextDelta, entity.EventDone}, types)
	assert.Equal(t, "ab", last.Content)
	require.NotNil(t, last.Usage)
	assert.Positive(t, last.Usage.TotalTokens)
}

func TestSession_BusyAndCancel(t *testing.T) {
	_, agent, s := newTestSession(t, &fakeModel{chunks: []string{"partial"}, block: true})
	rec := record(t, agent.Bus(), eventbus.EventRunCompleted)

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), "long task")
		done <- err
	}()
	require.Eventually(t, s.Running, time.Second, time.Millisecond)

	_, err := s.Stream(context.Background(), "second")
	assert.ErrorIs(t, err, errno.ErrSessionBusy)
	assert.ErrorIs(t, s.Reset(), errno.ErrSessionBusy)

	assert.True(t, s.Cancel())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, errno.ErrAborted)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
	assert.False(t, s.Cancel())
	assert.Eventually(t, func() bool { return !s.Running() }, time.Second, time.Millisecond)

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, entity.RunStatusCancelled, events[0].Payload.(entity.SessionEvent).Status)
}

func TestSession_RunTimeout(t *testing.T) {
	m := &fakeModel{block: true}
	rt := newTestRuntime(m, Config{RunTimeout: 30 * time.Millisecond})
	agent, err := rt.NewLocalAgent(context.Background(), entity.AgentConfig{Name: "main"})
	require.NoError(t, err)
	s, err := agent.OpenSession(context.Background(), entity.SessionMetadata{})
	require.NoError(t, err)

	_, err = s.Run(context.Background(), "slow")
	assert.ErrorIs(t, err, errno.ErrAborted)
}

func TestSession_ModelError(t *testing.T) {
	_, agent, s := newTestSession(t, &fakeModel{err: errors.New("rate limited")})
	rec := record(t, agent.Bus(), eventbus.EventLLMError)

	_, err := s.Run(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, []string{eventbus.EventLLMError}, rec.names())
	assert.Empty(t, s.History())
}

func TestSession_ErrorEventCarriesStack(t *testing.T) {
	_, _, s := newTestSession(t, &fakeModel{err: errors.New("rate limited")})

	sr, err := s.Stream(context.Background(), "hi")
	require.NoError(t, err)

	var last *entity.AgentEvent
	for {
		ev, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		last = ev
	}
	require.NotNil(t, last)
	assert.Equal(t, entity.EventError, last.Type)
	require.NotNil(t, last.Error)
	assert.Contains(t, last.Error.Message, "rate limited")
	assert.Contains(t, last.Error.Stack, "rate limited")
	assert.False(t, last.Error.Recoverable)
}

func TestSession_Reset(t *testing.T) {
	_, agent, s := newTestSession(t, &fakeModel{chunks: []string{"ok"}})
	rec := record(t, agent.Bus(), eventbus.EventSessionReset)

	_, err := s.Run(context.Background(), "hi")
	require.NoError(t, err)
	require.NoError(t, s.Reset())
	assert.Empty(t, s.History())
	assert.Equal(t, []string{eventbus.EventSessionReset}, rec.names())
}

func TestAgent_EndSessionAndStop(t *testing.T) {
	rt, agent, s := newTestSession(t, &fakeModel{chunks: []string{"ok"}})
	ctx := context.Background()

	got, err := rt.GetSession(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, s.ID(), got.ID())

	child, err := agent.CreateSession(ctx, entity.SessionMetadata{
		Type:            entity.SessionTypeSubAgent,
		ParentSessionID: s.ID(),
		Depth:           1,
	})
	require.NoError(t, err)
	assert.Equal(t, sortedPair(s.ID(), child.ID()), agent.Sessions())

	require.NoError(t, agent.EndSession(ctx, child.ID()))
	assert.ErrorIs(t, agent.EndSession(ctx, child.ID()), errno.ErrSessionNotFound)
	_, err = rt.GetSession(ctx, child.ID())
	assert.ErrorIs(t, err, errno.ErrSessionNotFound)

	meta, err := rt.GetSessionMetadata(ctx, child.ID())
	require.NoError(t, err)
	assert.Equal(t, s.ID(), meta.ParentSessionID)

	require.NoError(t, agent.Stop(ctx))
	require.NoError(t, agent.Stop(ctx))
	_, ok := rt.Agent(agent.ID())
	assert.False(t, ok)
	_, err = rt.GetSession(ctx, s.ID())
	assert.ErrorIs(t, err, errno.ErrSessionNotFound)
	_, err = agent.CreateSession(ctx, entity.SessionMetadata{})
	assert.ErrorIs(t, err, errno.ErrAgentStopped)
	_, err = s.Stream(ctx, "after stop")
	assert.ErrorIs(t, err, errno.ErrSessionNotFound)
}

func TestRuntime_ShutdownStopsAgents(t *testing.T) {
	rt := newTestRuntime(&fakeModel{}, Config{})
	for _, name := range []string{"a", "b"} {
		_, err := rt.NewAgent(context.Background(), entity.AgentConfig{Name: name})
		require.NoError(t, err)
	}
	assert.Len(t, rt.Agents(), 2)
	require.NoError(t, rt.Shutdown(context.Background()))
	assert.Empty(t, rt.Agents())
}

func TestRuntime_ModelBuilderError(t *testing.T) {
	rt := New(inmemory.NewSessionStore(), func(context.Context, entity.AgentConfig) (einoModel.BaseChatModel, error) {
		return nil, errors.New("no key")
	}, Config{})
	_, err := rt.NewAgent(context.Background(), entity.AgentConfig{Name: "x"})
	assert.EqualError(t, err, "no key")
	assert.Empty(t, rt.Agents())
}

func sortedPair(a, b string) []string {
	if a < b {
		return []string{a, b}
	}
	return []string{b, a}
}
