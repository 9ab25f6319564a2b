package approval

import (
	"context"
	"sync"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg"
	"github.com/kiosk404/hivelink/pkg/logger"
)

// Pattern identifies a class of requests a session can be told to trust.
// An empty ToolName matches every request of Type.
type Pattern struct {
	Type     entity.ApprovalType `json:"type"`
	ToolName string              `json:"tool_name,omitempty"`
}

// PatternOf returns the narrowest pattern matching req.
func PatternOf(req entity.ApprovalRequest) Pattern {
	return Pattern{Type: req.Type, ToolName: req.ToolName()}
}

// Matches reports whether req falls under p.
func (p Pattern) Matches(req entity.ApprovalRequest) bool {
	if p.Type != req.Type {
		return false
	}
	return p.ToolName == "" || p.ToolName == req.ToolName()
}

// Gate adds session-scoped trust in front of a Handler: once a pattern is remembered
// for a session, matching requests in that session are approved without prompting.
type Gate struct {
	handler *Handler

	mu      sync.RWMutex
	trusted map[string][]Pattern
}

// NewGate creates a gate in front of handler.
func NewGate(handler *Handler) *Gate {
	return &Gate{
		handler: handler,
		trusted: make(map[string][]Pattern),
	}
}

// Handler returns the handler behind the gate.
func (g *Gate) Handler() *Handler {
	return g.handler
}

// Check approves req immediately when its session trusts it, otherwise waits on the
// handler. Trusted approvals are not emitted on the bus.
func (g *Gate) Check(ctx context.Context, req entity.ApprovalRequest) (entity.ApprovalResponse, error) {
	if g.Trusted(req) {
		logger.DebugX(pkg.ApprovalModuleName, "[Approval] %s auto-approved by session trust (%s)", req.Type, req.SessionID)
		return entity.ApprovalResponse{
			ApprovalID: req.ApprovalID,
			SessionID:  req.SessionID,
			Status:     entity.ApprovalApproved,
			Reason:     entity.ReasonRemembered,
		}, nil
	}
	return g.handler.Request(ctx, req)
}

// Trusted reports whether req's session trusts a pattern matching req.
func (g *Gate) Trusted(req entity.ApprovalRequest) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, p := range g.trusted[req.SessionID] {
		if p.Matches(req) {
			return true
		}
	}
	return false
}

// Remember makes sessionID trust p and approves the requests already pending in that
// session which p matches. Returns how many pending requests were approved.
func (g *Gate) Remember(sessionID string, p Pattern, data map[string]any) int {
	g.mu.Lock()
	exists := false
	for _, cur := range g.trusted[sessionID] {
		if cur == p {
			exists = true
			break
		}
	}
	if !exists {
		g.trusted[sessionID] = append(g.trusted[sessionID], p)
	}
	g.mu.Unlock()

	logger.InfoX(pkg.ApprovalModuleName, "[Approval] session %s now trusts %s/%s", sessionID, p.Type, p.ToolName)
	return g.handler.AutoApprovePending(func(req entity.ApprovalRequest) bool {
		return req.SessionID == sessionID && p.Matches(req)
	}, data)
}

// Forget drops every pattern trusted by sessionID.
func (g *Gate) Forget(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.trusted, sessionID)
}
