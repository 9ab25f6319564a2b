package approval

import (
	"context"
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

type result struct {
	resp entity.ApprovalResponse
	err  error
}

func newHandler() (*Handler, *eventbus.MemoryBus) {
	bus := eventbus.NewMemoryBus("approval-test")
	return NewHandler(NewCoordinator(bus)), bus
}

// request runs h.Request in the background and waits until it is pending.
func request(t *testing.T, ctx context.Context, h *Handler, req entity.ApprovalRequest) <-chan result {
	t.Helper()
	out := make(chan result, 1)
	go func() {
		resp, err := h.Request(ctx, req)
		out <- result{resp, err}
	}()
	require.Eventually(t, func() bool {
		_, ok := h.lookup(req.ApprovalID)
		return ok
	}, time.Second, time.Millisecond)
	return out
}

func wait(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("approval did not resolve")
		return result{}
	}
}

func TestHandler_ResolvesOnResponse(t *testing.T) {
	h, _ := newHandler()

	ch := request(t, context.Background(), h, entity.ApprovalRequest{ApprovalID: "a1", SessionID: "s1"})
	sid, ok := h.Coordinator().SessionID("a1")
	require.True(t, ok)
	assert.Equal(t, "s1", sid)

	h.Coordinator().EmitResponse(entity.ApprovalResponse{ApprovalID: "a1", Status: entity.ApprovalApproved, Reason: entity.ReasonUserApproved})

	r := wait(t, ch)
	require.NoError(t, r.err)
	assert.True(t, r.resp.Approved())
	assert.Equal(t, "s1", r.resp.SessionID)
	assert.Empty(t, h.Pending())

	_, ok = h.Coordinator().SessionID("a1")
	assert.False(t, ok)
}

func TestHandler_Timeout(t *testing.T) {
	h, bus := newHandler()

	var mu sync.Mutex
	var observed []entity.ApprovalResponse
	_, err := h.Coordinator().OnResponse(context.Background(), func(resp entity.ApprovalResponse) {
		mu.Lock()
		observed = append(observed, resp)
		mu.Unlock()
	})
	require.NoError(t, err)

	ch := request(t, context.Background(), h, entity.ApprovalRequest{ApprovalID: "a1", SessionID: "s1", Timeout: 100 * time.Millisecond})

	r := wait(t, ch)
	require.NoError(t, r.err)
	assert.Equal(t, entity.ApprovalCancelled, r.resp.Status)
	assert.Equal(t, entity.ReasonTimeout, r.resp.Reason)
	assert.NotContains(t, h.Pending(), "a1")

	// A late answer changes nothing.
	h.Coordinator().EmitResponse(entity.ApprovalResponse{ApprovalID: "a1", Status: entity.ApprovalApproved})
	assert.False(t, h.Cancel("a1"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, observed, 2)
	assert.Equal(t, entity.ReasonTimeout, observed[0].Reason)
	assert.Equal(t, 1, bus.SubscriberCount(eventbus.EventApprovalResponse))
}

func TestHandler_Cancel(t *testing.T) {
	h, bus := newHandler()

	ch := request(t, context.Background(), h, entity.ApprovalRequest{ApprovalID: "a1", SessionID: "s1"})
	assert.True(t, h.Cancel("a1"))
	assert.False(t, h.Cancel("a1"))

	r := wait(t, ch)
	assert.Equal(t, entity.ApprovalCancelled, r.resp.Status)
	assert.Equal(t, entity.ReasonUserCancelled, r.resp.Reason)
	assert.Equal(t, 0, bus.SubscriberCount(eventbus.EventApprovalResponse))
}

func TestHandler_ContextCancelled(t *testing.T) {
	h, _ := newHandler()
	ctx, cancel := context.WithCancel(context.Background())

	ch := request(t, ctx, h, entity.ApprovalRequest{ApprovalID: "a1", SessionID: "s1"})
	cancel()

	r := wait(t, ch)
	require.NoError(t, r.err)
	assert.Equal(t, entity.ApprovalCancelled, r.resp.Status)
	assert.Equal(t, entity.ReasonSystemCancelled, r.resp.Reason)
	assert.Empty(t, h.Pending())
}

func TestHandler_Validation(t *testing.T) {
	h, _ := newHandler()

	_, err := h.Request(context.Background(), entity.ApprovalRequest{ApprovalID: "a1"})
	assert.ErrorIs(t, err, errno.ErrInvalidApproval)

	_, err = h.Request(context.Background(), entity.ApprovalRequest{ApprovalID: "a1", SessionID: "s1", Timeout: -time.Second})
	assert.ErrorIs(t, err, errno.ErrInvalidApproval)

	ch := request(t, context.Background(), h, entity.ApprovalRequest{ApprovalID: "a1", SessionID: "s1"})
	_, err = h.Request(context.Background(), entity.ApprovalRequest{ApprovalID: "a1", SessionID: "s1"})
	assert.ErrorIs(t, err, errno.ErrDuplicateApproval)

	h.Cancel("a1")
	wait(t, ch)
}

func TestHandler_AutoApprovePending(t *testing.T) {
	h, _ := newHandler()

	chans := make(map[string]<-chan result)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("a%d", i)
		tool := "read_file"
		if i%2 == 1 {
			tool = "bash"
		}
		chans[id] = request(t, context.Background(), h, entity.ApprovalRequest{
			ApprovalID: id,
			SessionID:  "s1",
			Type:       entity.ApprovalToolConfirmation,
			Metadata:   map[string]any{"tool_name": tool},
		})
	}

	n := h.AutoApprovePending(func(req entity.ApprovalRequest) bool {
		return req.ToolName() == "bash"
	}, map[string]any{"scope": "session"})
	assert.Equal(t, 2, n)

	for _, id := range []string{"a1", "a3"} {
		r := wait(t, chans[id])
		assert.True(t, r.resp.Approved())
		assert.Equal(t, entity.ReasonRemembered, r.resp.Reason)
		assert.Equal(t, "session", r.resp.Data["scope"])
	}
	assert.ElementsMatch(t, []string{"a0", "a2", "a4"}, h.Pending())

	assert.Equal(t, 0, h.AutoApprovePending(func(entity.ApprovalRequest) bool { return false }, nil))
	assert.Equal(t, 3, h.CancelAll())
	for _, id := range []string{"a0", "a2", "a4"} {
		r := wait(t, chans[id])
		assert.Equal(t, entity.ReasonSystemCancelled, r.resp.Reason)
	}
}

func TestHandler_GeneratesID(t *testing.T) {
	h, _ := newHandler()

	var seen entity.ApprovalRequest
	_, err := h.Coordinator().OnRequest(context.Background(), func(req entity.ApprovalRequest) {
		seen = req
		h.Coordinator().EmitResponse(entity.ApprovalResponse{ApprovalID: req.ApprovalID, Status: entity.ApprovalDenied, Reason: entity.ReasonUserDenied})
	})
	require.NoError(t, err)

	resp, err := h.Request(context.Background(), entity.ApprovalRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.NotEmpty(t, seen.ApprovalID)
	assert.Equal(t, seen.ApprovalID, resp.ApprovalID)
	assert.Equal(t, entity.ApprovalDenied, resp.Status)
}

func TestCoordinator_WatchTracksRelayedRequests(t *testing.T) {
	bus := eventbus.NewMemoryBus("approval-test")
	coord := NewCoordinator(bus)
	require.NoError(t, coord.Watch(context.Background()))

	bus.Publish(eventbus.Event{
		Name:    eventbus.EventApprovalRequest,
		Payload: entity.ApprovalRequest{ApprovalID: "child-1", SessionID: "parent"},
	})
	sid, ok := coord.SessionID("child-1")
	require.True(t, ok)
	assert.Equal(t, "parent", sid)

	bus.Publish(eventbus.Event{
		Name:    eventbus.EventApprovalResponse,
		Payload: &entity.ApprovalResponse{ApprovalID: "child-1", Status: entity.ApprovalApproved},
	})
	_, ok = coord.SessionID("child-1")
	assert.False(t, ok)
}

func TestCoordinator_SubscriptionEndsWithContext(t *testing.T) {
	bus := eventbus.NewMemoryBus("approval-test")
	coord := NewCoordinator(bus)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := coord.OnRequest(ctx, func(entity.ApprovalRequest) {})
	require.NoError(t, err)
	assert.Equal(t, 1, bus.SubscriberCount(eventbus.EventApprovalRequest))

	cancel()
	assert.Eventually(t, func() bool {
		return bus.SubscriberCount(eventbus.EventApprovalRequest) == 0
	}, time.Second, time.Millisecond)
}
