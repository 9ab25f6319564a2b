// Package stream turns agent events into ordered per-session server-sent-event frames.
package stream

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/eventbus"
	"github.com/kiosk404/hivelink/pkg/utils/json"
)

// Frame is one server-sent event.
type Frame struct {
	Event string
	Data  []byte
}

// Bytes renders the frame as "event: <name>\ndata: <json>\n\n".
func (f Frame) Bytes() []byte {
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", f.Event, f.Data))
}

// WriteTo writes the rendered frame to w.
func (f Frame) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.Bytes())
	return int64(n), err
}

// newFrame marshals payload into a frame named name.
func newFrame(name string, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s frame: %w", name, err)
	}
	return Frame{Event: name, Data: data}, nil
}

// agentEventFrame renders an agent event. Error events carry only their ErrorPayload.
func agentEventFrame(ev *entity.AgentEvent) (Frame, error) {
	if ev.Type == entity.EventError && ev.Error != nil {
		return newFrame(string(entity.EventError), ev.Error)
	}
	return newFrame(string(ev.Type), ev)
}

// errorFrame converts a producer failure into a terminal error frame.
func errorFrame(sessionID string, err error) Frame {
	payload := entity.ErrorPayload{
		Message:     err.Error(),
		Stack:       fmt.Sprintf("%+v", errors.WithStack(err)),
		Recoverable: false,
		Context:     map[string]any{"sessionId": sessionID},
	}
	f, marshalErr := newFrame(string(entity.EventError), payload)
	if marshalErr != nil {
		return Frame{Event: string(entity.EventError), Data: []byte(`{"message":"stream failed","recoverable":false}`)}
	}
	return f
}

// busEventFrame renders an out-of-band bus event. Meta fields, such as those added when
// relaying from a sub-agent, are merged into the top level of the JSON object.
func busEventFrame(ev eventbus.Event) (Frame, error) {
	if len(ev.Meta) == 0 {
		return newFrame(ev.Name, ev.Payload)
	}

	merged := make(map[string]any)
	raw, err := json.Marshal(ev.Payload)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s payload: %w", ev.Name, err)
	}
	if err := json.Unmarshal(raw, &merged); err != nil {
		merged = map[string]any{"payload": ev.Payload}
	} else if merged == nil {
		merged = make(map[string]any)
	}
	for k, v := range ev.Meta {
		merged[k] = v
	}
	return newFrame(ev.Name, merged)
}
