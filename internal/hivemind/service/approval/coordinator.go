// Package approval brokers human-in-the-loop approval requests over an event bus.
package approval

import (
	"context"
	"sync"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg"
	"github.com/kiosk404/hivelink/internal/hivemind/service/eventbus"
	"github.com/kiosk404/hivelink/pkg/logger"
)

// Coordinator relays approval requests and responses over a bus and remembers which
// session each open request belongs to. It has no timeout logic of its own.
type Coordinator struct {
	bus eventbus.Bus

	mu       sync.RWMutex
	sessions map[string]string
}

// NewCoordinator creates a coordinator publishing on bus.
func NewCoordinator(bus eventbus.Bus) *Coordinator {
	return &Coordinator{
		bus:      bus,
		sessions: make(map[string]string),
	}
}

// EmitRequest records approvalID→sessionID and publishes approval:request.
func (c *Coordinator) EmitRequest(req entity.ApprovalRequest) {
	c.track(req)
	c.bus.Publish(eventbus.Event{
		Name:      eventbus.EventApprovalRequest,
		SessionID: req.SessionID,
		Payload:   req,
	})
}

// EmitResponse publishes approval:response and forgets the request's session.
// Late or duplicate responses are published again but change nothing here.
func (c *Coordinator) EmitResponse(resp entity.ApprovalResponse) {
	if resp.SessionID == "" {
		if sid, ok := c.SessionID(resp.ApprovalID); ok {
			resp.SessionID = sid
		}
	}
	c.mu.Lock()
	delete(c.sessions, resp.ApprovalID)
	c.mu.Unlock()

	c.bus.Publish(eventbus.Event{
		Name:      eventbus.EventApprovalResponse,
		SessionID: resp.SessionID,
		Payload:   resp,
	})
}

// SessionID returns the session of an open request.
func (c *Coordinator) SessionID(approvalID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sid, ok := c.sessions[approvalID]
	return sid, ok
}

// OnRequest calls h for every approval:request. The subscription ends with ctx.
func (c *Coordinator) OnRequest(ctx context.Context, h func(entity.ApprovalRequest)) (eventbus.Subscription, error) {
	return c.bus.Subscribe(ctx, eventbus.EventApprovalRequest, func(ev eventbus.Event) {
		if req, ok := RequestOf(ev); ok {
			h(req)
		}
	})
}

// OnResponse calls h for every approval:response. The subscription ends with ctx.
func (c *Coordinator) OnResponse(ctx context.Context, h func(entity.ApprovalResponse)) (eventbus.Subscription, error) {
	return c.bus.Subscribe(ctx, eventbus.EventApprovalResponse, func(ev eventbus.Event) {
		if resp, ok := ResponseOf(ev); ok {
			h(resp)
		}
	})
}

// Watch records the session of requests published on the bus by other emitters, such
// as requests relayed from a sub-agent, so responses to them can be routed.
func (c *Coordinator) Watch(ctx context.Context) error {
	if _, err := c.OnRequest(ctx, c.track); err != nil {
		return err
	}
	_, err := c.OnResponse(ctx, func(resp entity.ApprovalResponse) {
		c.mu.Lock()
		delete(c.sessions, resp.ApprovalID)
		c.mu.Unlock()
	})
	return err
}

func (c *Coordinator) track(req entity.ApprovalRequest) {
	if req.ApprovalID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[req.ApprovalID]; !ok {
		logger.DebugX(pkg.ApprovalModuleName, "[Approval] tracking %s for session %s", req.ApprovalID, req.SessionID)
	}
	c.sessions[req.ApprovalID] = req.SessionID
}

// RequestOf extracts an approval request from an event payload.
func RequestOf(ev eventbus.Event) (entity.ApprovalRequest, bool) {
	switch p := ev.Payload.(type) {
	case entity.ApprovalRequest:
		return p, true
	case *entity.ApprovalRequest:
		if p != nil {
			return *p, true
		}
	}
	return entity.ApprovalRequest{}, false
}

// ResponseOf extracts an approval response from an event payload.
func ResponseOf(ev eventbus.Event) (entity.ApprovalResponse, bool) {
	switch p := ev.Payload.(type) {
	case entity.ApprovalResponse:
		return p, true
	case *entity.ApprovalResponse:
		if p != nil {
			return *p, true
		}
	}
	return entity.ApprovalResponse{}, false
}
