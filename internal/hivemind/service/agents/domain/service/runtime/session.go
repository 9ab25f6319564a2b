package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
	"github.com/kiosk404/hivelink/internal/hivemind/service/eventbus"
	"github.com/kiosk404/hivelink/pkg/logger"
	"github.com/kiosk404/hivelink/pkg/utils/safego"
)

const maxTitleRunes = 48

// LocalSession is one conversation on a LocalAgent. At most one run is in flight.
type LocalSession struct {
	id    string
	agent *LocalAgent
	bus   *eventbus.MemoryBus

	// stopRelay ends the relay of this session's events to the agent bus.
	stopRelay context.CancelFunc

	mu      sync.Mutex
	history []*schema.Message
	abort   *AbortController
	titled  bool
	ended   bool
}

func newLocalSession(id string, agent *LocalAgent, titled bool) *LocalSession {
	return &LocalSession{
		id:     id,
		agent:  agent,
		bus:    eventbus.NewMemoryBus("session:" + id),
		titled: titled,
	}
}

func (s *LocalSession) ID() string        { return s.id }
func (s *LocalSession) Bus() eventbus.Bus { return s.bus }

// Running reports whether a run is in flight.
func (s *LocalSession) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abort != nil
}

// Stream starts a run on input and returns its events. The run goes on in the
// background until it completes, fails or is cancelled; the reader ends after the
// done or error event.
func (s *LocalSession) Stream(ctx context.Context, input string) (*schema.StreamReader[*entity.AgentEvent], error) {
	runID := uuid.NewString()

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", errno.ErrSessionNotFound, s.id)
	}
	if s.abort != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", errno.ErrSessionBusy, s.id)
	}
	abort := NewAbortController(ctx, runID, s.agent.runtime.cfg.RunTimeout)
	s.abort = abort
	history := append([]*schema.Message(nil), s.history...)
	s.mu.Unlock()

	sr, sw := schema.Pipe[*entity.AgentEvent](20)
	sw.Send(&entity.AgentEvent{
		Type:      entity.EventRunStatus,
		SessionID: s.id,
		RunStatus: entity.RunStatusInProgress,
	}, nil)

	safego.Go(abort.Context(), func() {
		defer sw.Close()
		defer s.finish(abort)

		s.execute(abort, runID, history, input, sw)
	})
	return sr, nil
}

// Run executes input to completion and returns the assistant reply.
func (s *LocalSession) Run(ctx context.Context, input string) (string, error) {
	sr, err := s.Stream(ctx, input)
	if err != nil {
		return "", err
	}
	defer sr.Close()

	for {
		ev, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("run of session %s ended without a result", s.id)
		}
		if err != nil {
			return "", err
		}
		switch ev.Type {
		case entity.EventDone:
			return ev.Content, nil
		case entity.EventError:
			return "", runError(ev)
		}
	}
}

// Cancel aborts the in-flight run. Returns false when nothing was running.
func (s *LocalSession) Cancel() bool {
	s.mu.Lock()
	abort := s.abort
	s.mu.Unlock()
	if abort == nil {
		return false
	}
	return abort.Abort()
}

// Reset clears the conversation history.
func (s *LocalSession) Reset() error {
	s.mu.Lock()
	if s.abort != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", errno.ErrSessionBusy, s.id)
	}
	s.history = nil
	s.mu.Unlock()

	s.publish(eventbus.EventSessionReset, entity.SessionEvent{SessionID: s.id})
	return nil
}

// History returns a copy of the conversation so far.
func (s *LocalSession) History() []*schema.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*schema.Message(nil), s.history...)
}

func (s *LocalSession) execute(
	abort *AbortController,
	runID string,
	history []*schema.Message,
	input string,
	sw *schema.StreamWriter[*entity.AgentEvent],
) {
	ctx := abort.Context()
	state := NewRunStateMachine(s.id, runID)
	s.publish(eventbus.EventRunStarted, entity.SessionEvent{SessionID: s.id, RunID: runID, Status: state.Status()})

	msgs := s.agent.contextBuilder.Build(s.agent.cfg.SystemPrompt, history, input)
	result, err := s.agent.executor.Execute(ctx, s.agent.model, msgs, func(delta string) {
		sw.Send(&entity.AgentEvent{Type: entity.EventTextDelta, SessionID: s.id, Delta: delta}, nil)
		s.publish(eventbus.EventLLMChunk, entity.SessionEvent{SessionID: s.id, RunID: runID, Delta: delta})
	})
	if err == nil {
		err = abort.CheckAborted()
	}
	if err != nil {
		if abort.IsAborted() {
			state.TransitionToCancelled()
			err = errno.ErrAborted
		} else {
			state.TransitionToFailed(err)
		}
		s.publish(eventbus.EventLLMError, entity.SessionEvent{SessionID: s.id, RunID: runID, Error: err.Error()})
		s.publish(eventbus.EventRunCompleted, entity.SessionEvent{SessionID: s.id, RunID: runID, Status: state.Status()})
		sw.Send(&entity.AgentEvent{
			Type:      entity.EventError,
			SessionID: s.id,
			RunStatus: state.Status(),
			Error: &entity.ErrorPayload{
				Message:     err.Error(),
				Stack:       fmt.Sprintf("%+v", pkgerrors.WithStack(err)),
				Recoverable: false,
				Context:     map[string]any{"sessionId": s.id, "runId": runID, "status": string(state.Status())},
			},
		}, nil)
		return
	}

	content := result.FinalMessage.Content
	s.mu.Lock()
	s.history = append(s.history, schema.UserMessage(input), schema.AssistantMessage(content, nil))
	needTitle := !s.titled
	s.titled = true
	s.mu.Unlock()

	state.TransitionToCompleted()
	s.publish(eventbus.EventLLMResponse, entity.SessionEvent{SessionID: s.id, RunID: runID, Content: content, Usage: result.Usage})
	s.publish(eventbus.EventRunCompleted, entity.SessionEvent{SessionID: s.id, RunID: runID, Status: state.Status(), Usage: result.Usage})
	if needTitle {
		s.updateTitle(context.WithoutCancel(ctx), titleFrom(input))
	}

	sw.Send(&entity.AgentEvent{
		Type:      entity.EventDone,
		SessionID: s.id,
		Content:   content,
		RunStatus: state.Status(),
		Usage:     result.Usage,
	}, nil)
}

func (s *LocalSession) updateTitle(ctx context.Context, title string) {
	if title == "" {
		return
	}
	repo := s.agent.runtime.sessions
	meta, err := repo.Get(ctx, s.id)
	if err != nil {
		logger.WarnX(pkg.ModuleName, "[Session] failed to load session %s for title update: %v", s.id, err)
	} else {
		meta.Title = title
		meta.UpdatedAt = time.Now()
		if err := repo.Update(ctx, meta); err != nil {
			logger.WarnX(pkg.ModuleName, "[Session] failed to save title of session %s: %v", s.id, err)
		}
	}
	s.publish(eventbus.EventSessionTitleUpdated, entity.SessionEvent{SessionID: s.id, Title: title})
}

func (s *LocalSession) finish(abort *AbortController) {
	s.mu.Lock()
	if s.abort == abort {
		s.abort = nil
	}
	s.mu.Unlock()
	abort.CleanUp()
}

// end aborts any run and closes the session bus. Idempotent.
func (s *LocalSession) end() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	abort := s.abort
	s.mu.Unlock()

	if abort != nil {
		abort.Abort()
	}
	if s.stopRelay != nil {
		s.stopRelay()
	}
	s.bus.Close()
}

func (s *LocalSession) publish(name string, payload entity.SessionEvent) {
	s.bus.Publish(eventbus.Event{Name: name, SessionID: s.id, Payload: payload})
}

// runError turns a terminal error event back into an error for Run callers.
func runError(ev *entity.AgentEvent) error {
	if ev.Error == nil {
		return errors.New("run failed")
	}
	if ev.RunStatus == entity.RunStatusCancelled {
		return errno.ErrAborted
	}
	return errors.New(ev.Error.Message)
}

// titleFrom derives a session title from the first line of the first input.
func titleFrom(input string) string {
	line := strings.TrimSpace(input)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if utf8.RuneCountInString(line) <= maxTitleRunes {
		return line
	}
	return string([]rune(line)[:maxTitleRunes-3]) + "..."
}
