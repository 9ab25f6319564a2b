package approval

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
	"github.com/kiosk404/hivelink/internal/hivemind/service/eventbus"
	"github.com/kiosk404/hivelink/pkg/logger"
)

// pendingApproval is a request waiting for its single terminal transition.
type pendingApproval struct {
	req   entity.ApprovalRequest
	sub   eventbus.Subscription
	timer *time.Timer

	// done receives exactly one response.
	done chan entity.ApprovalResponse
}

// release drops the response listener and stops the timer.
func (p *pendingApproval) release() {
	if p.sub != nil {
		p.sub.Unsubscribe()
	}
	if p.timer != nil {
		p.timer.Stop()
	}
}

// Handler waits for approval responses on top of a Coordinator.
//
// A request is pending from Request until the first of: a matching response on the
// bus, Cancel, its timeout, or the caller's context ending. Every path resolves with
// a response; errors are only returned for requests rejected before they are emitted.
type Handler struct {
	coord *Coordinator

	mu      sync.Mutex
	pending map[string]*pendingApproval
}

// NewHandler creates a handler on top of coord.
func NewHandler(coord *Coordinator) *Handler {
	return &Handler{
		coord:   coord,
		pending: make(map[string]*pendingApproval),
	}
}

// Coordinator returns the coordinator this handler emits through.
func (h *Handler) Coordinator() *Coordinator {
	return h.coord
}

// Request emits req and blocks until it reaches a terminal state.
//
// An empty ApprovalID is filled with a generated one. ctx ending resolves the request
// as cancelled with reason system_cancelled.
func (h *Handler) Request(ctx context.Context, req entity.ApprovalRequest) (entity.ApprovalResponse, error) {
	if req.ApprovalID == "" {
		req.ApprovalID = uuid.NewString()
	}
	if req.SessionID == "" {
		return entity.ApprovalResponse{}, fmt.Errorf("%w: session id is required", errno.ErrInvalidApproval)
	}
	if req.Timeout < 0 {
		return entity.ApprovalResponse{}, fmt.Errorf("%w: negative timeout %s", errno.ErrInvalidApproval, req.Timeout)
	}
	if req.Type == "" {
		req.Type = entity.ApprovalCustom
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	id := req.ApprovalID
	p := &pendingApproval{req: req, done: make(chan entity.ApprovalResponse, 1)}

	h.mu.Lock()
	if _, ok := h.pending[id]; ok {
		h.mu.Unlock()
		return entity.ApprovalResponse{}, fmt.Errorf("%w: %s", errno.ErrDuplicateApproval, id)
	}
	sub, err := h.coord.OnResponse(context.Background(), func(resp entity.ApprovalResponse) {
		if resp.ApprovalID == id {
			h.finish(id, resp, false)
		}
	})
	if err != nil {
		h.mu.Unlock()
		return entity.ApprovalResponse{}, fmt.Errorf("listen for approval %s: %w", id, err)
	}
	p.sub = sub
	if req.Timeout > 0 {
		p.timer = time.AfterFunc(req.Timeout, func() {
			h.finish(id, entity.ApprovalResponse{
				ApprovalID: id,
				SessionID:  req.SessionID,
				Status:     entity.ApprovalCancelled,
				Reason:     entity.ReasonTimeout,
				Message:    fmt.Sprintf("approval timed out after %s", req.Timeout),
			}, true)
		})
	}
	h.pending[id] = p
	h.mu.Unlock()

	logger.InfoX(pkg.ApprovalModuleName, "[Approval] request %s (%s) for session %s, timeout=%s", id, req.Type, req.SessionID, req.Timeout)
	h.coord.EmitRequest(req)

	select {
	case resp := <-p.done:
		return resp, nil
	case <-ctx.Done():
		h.finish(id, entity.ApprovalResponse{
			ApprovalID: id,
			SessionID:  req.SessionID,
			Status:     entity.ApprovalCancelled,
			Reason:     entity.ReasonSystemCancelled,
			Message:    ctx.Err().Error(),
		}, true)
		return <-p.done, nil
	}
}

// Cancel resolves a pending request as cancelled by the user and emits the
// cancellation so observers see it. Returns false when id is not pending.
func (h *Handler) Cancel(id string) bool {
	req, ok := h.lookup(id)
	if !ok {
		return false
	}
	return h.finish(id, entity.ApprovalResponse{
		ApprovalID: id,
		SessionID:  req.SessionID,
		Status:     entity.ApprovalCancelled,
		Reason:     entity.ReasonUserCancelled,
		Message:    "approval cancelled",
	}, true)
}

// CancelAll cancels every pending request. Returns how many were cancelled.
func (h *Handler) CancelAll() int {
	n := 0
	for _, req := range h.PendingRequests() {
		if h.finish(req.ApprovalID, entity.ApprovalResponse{
			ApprovalID: req.ApprovalID,
			SessionID:  req.SessionID,
			Status:     entity.ApprovalCancelled,
			Reason:     entity.ReasonSystemCancelled,
			Message:    "approval handler shutting down",
		}, true) {
			n++
		}
	}
	if n > 0 {
		logger.InfoX(pkg.ApprovalModuleName, "[Approval] cancelled %d pending approvals", n)
	}
	return n
}

// Pending returns the ids of pending requests, oldest first.
func (h *Handler) Pending() []string {
	reqs := h.PendingRequests()
	ids := make([]string, len(reqs))
	for i, req := range reqs {
		ids[i] = req.ApprovalID
	}
	return ids
}

// PendingRequests returns the pending requests, oldest first.
func (h *Handler) PendingRequests() []entity.ApprovalRequest {
	h.mu.Lock()
	reqs := make([]entity.ApprovalRequest, 0, len(h.pending))
	for _, p := range h.pending {
		reqs = append(reqs, p.req)
	}
	h.mu.Unlock()

	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].ApprovalID < reqs[j].ApprovalID
		}
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
	return reqs
}

// AutoApprovePending approves every pending request matched by pred, attaching data.
// Non-matching requests are left untouched. Returns how many were approved.
func (h *Handler) AutoApprovePending(pred func(entity.ApprovalRequest) bool, data map[string]any) int {
	n := 0
	for _, req := range h.PendingRequests() {
		if !pred(req) {
			continue
		}
		if h.finish(req.ApprovalID, entity.ApprovalResponse{
			ApprovalID: req.ApprovalID,
			SessionID:  req.SessionID,
			Status:     entity.ApprovalApproved,
			Reason:     entity.ReasonRemembered,
			Data:       data,
		}, true) {
			n++
		}
	}
	if n > 0 {
		logger.InfoX(pkg.ApprovalModuleName, "[Approval] auto-approved %d pending approvals", n)
	}
	return n
}

func (h *Handler) lookup(id string) (entity.ApprovalRequest, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pending[id]
	if !ok {
		return entity.ApprovalRequest{}, false
	}
	return p.req, true
}

// finish performs the terminal transition for id. Only the first caller wins: it
// removes the record, releases the listener and timer, optionally emits resp, and
// delivers resp to the waiting Request. Later callers get false.
func (h *Handler) finish(id string, resp entity.ApprovalResponse, emit bool) bool {
	h.mu.Lock()
	p, ok := h.pending[id]
	if !ok {
		h.mu.Unlock()
		return false
	}
	delete(h.pending, id)
	h.mu.Unlock()

	p.release()
	if resp.SessionID == "" {
		resp.SessionID = p.req.SessionID
	}
	if emit {
		h.coord.EmitResponse(resp)
	}
	p.done <- resp

	logger.InfoX(pkg.ApprovalModuleName, "[Approval] %s resolved: status=%s reason=%s", id, resp.Status, resp.Reason)
	return true
}
