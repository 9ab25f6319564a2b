package stream

import (
	"context"
	"io"
	"sync"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg"
	"github.com/kiosk404/hivelink/pkg/logger"
)

// Stream is the consumer side of a session: frames in arrival order, then io.EOF
// once the session is closed.
type Stream struct {
	sessionID string
	mgr       *Manager
	limit     int

	mu     sync.Mutex
	frames []Frame
	closed bool
	notify chan struct{}
}

func newStream(sessionID string, mgr *Manager) *Stream {
	return &Stream{
		sessionID: sessionID,
		mgr:       mgr,
		limit:     mgr.maxBuffered,
		notify:    make(chan struct{}, 1),
	}
}

// SessionID returns the session this stream reads.
func (s *Stream) SessionID() string {
	return s.sessionID
}

// Next blocks until a frame is available, the stream is closed (io.EOF) or ctx ends.
// Frames queued before close are still returned before io.EOF.
func (s *Stream) Next(ctx context.Context) (Frame, error) {
	for {
		s.mu.Lock()
		if len(s.frames) > 0 {
			f := s.frames[0]
			s.frames[0] = Frame{}
			s.frames = s.frames[1:]
			s.mu.Unlock()
			return f, nil
		}
		if s.closed {
			s.mu.Unlock()
			return Frame{}, io.EOF
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		}
	}
}

// Cancel closes the session from the consumer side.
func (s *Stream) Cancel() {
	s.mgr.detach(s)
}

// push queues frames, dropping the oldest queued ones beyond the limit. Returns false
// once the stream is closed.
func (s *Stream) push(frames ...Frame) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.frames = append(s.frames, frames...)
	if over := len(s.frames) - s.limit; s.limit > 0 && over > 0 {
		logger.WarnX(pkg.StreamModuleName, "[Stream] reader of session %s is behind (%d frames), dropping %d oldest", s.sessionID, s.limit, over)
		clear(s.frames[:over])
		s.frames = s.frames[over:]
	}
	s.mu.Unlock()
	s.wake()
	return true
}

// close ends the stream after the queued frames. Idempotent.
func (s *Stream) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
}

func (s *Stream) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
