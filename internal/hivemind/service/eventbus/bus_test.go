package eventbus

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
	"github.com/kiosk404/hivelink/pkg/logger"
)

func init() {
	logger.SetOutput(io.Discard)
}

func TestMemoryBus_PublishInOrder(t *testing.T) {
	bus := NewMemoryBus("test")

	var got []int
	_, err := bus.Subscribe(context.Background(), "tick", func(ev Event) {
		got = append(got, ev.Payload.(int))
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		bus.Publish(Event{Name: "tick", Payload: i})
	}
	bus.Publish(Event{Name: "other", Payload: 99})

	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestMemoryBus_UnsubscribeIdempotent(t *testing.T) {
	bus := NewMemoryBus("test")

	calls := 0
	sub, err := bus.Subscribe(context.Background(), "tick", func(Event) { calls++ })
	require.NoError(t, err)

	bus.Publish(Event{Name: "tick"})
	sub.Unsubscribe()
	sub.Unsubscribe()
	bus.Publish(Event{Name: "tick"})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.SubscriberCount("tick"))
}

func TestMemoryBus_ContextCancelUnsubscribes(t *testing.T) {
	bus := NewMemoryBus("test")
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := bus.Subscribe(ctx, "tick", func(Event) { calls++ })
	require.NoError(t, err)

	bus.Publish(Event{Name: "tick"})
	cancel()
	bus.Publish(Event{Name: "tick"})
	assert.Equal(t, 1, calls)

	assert.Eventually(t, func() bool { return bus.SubscriberCount("tick") == 0 }, time.Second, time.Millisecond)
	bus.Publish(Event{Name: "tick"})
	assert.Equal(t, 1, calls)
}

func TestMemoryBus_HandlerMayUnsubscribeDuringDispatch(t *testing.T) {
	bus := NewMemoryBus("test")

	var second Subscription
	secondCalls := 0
	_, err := bus.Subscribe(context.Background(), "tick", func(Event) {
		second.Unsubscribe()
	})
	require.NoError(t, err)
	second, err = bus.Subscribe(context.Background(), "tick", func(Event) { secondCalls++ })
	require.NoError(t, err)

	bus.Publish(Event{Name: "tick"})
	assert.Equal(t, 0, secondCalls)
}

func TestMemoryBus_HandlerPanicDoesNotStopDelivery(t *testing.T) {
	bus := NewMemoryBus("test")

	calls := 0
	_, _ = bus.Subscribe(context.Background(), "tick", func(Event) { panic("boom") })
	_, _ = bus.Subscribe(context.Background(), "tick", func(Event) { calls++ })

	assert.NotPanics(t, func() { bus.Publish(Event{Name: "tick"}) })
	assert.Equal(t, 1, calls)
}

func TestMemoryBus_Closed(t *testing.T) {
	bus := NewMemoryBus("test")
	sub, err := bus.Subscribe(context.Background(), "tick", func(Event) { t.Fatal("delivered after close") })
	require.NoError(t, err)

	bus.Close()
	bus.Close()
	bus.Publish(Event{Name: "tick"})
	assert.NotPanics(t, sub.Unsubscribe)

	_, err = bus.Subscribe(context.Background(), "tick", func(Event) {})
	assert.ErrorIs(t, err, errno.ErrBusClosed)
}

func TestEvent_WithMetaCopies(t *testing.T) {
	ev := Event{Name: "x", Meta: map[string]any{"a": 1}}
	out := ev.WithMeta(map[string]any{"b": 2, "a": 3})

	assert.Equal(t, map[string]any{"a": 1}, ev.Meta)
	assert.Equal(t, map[string]any{"a": 3, "b": 2}, out.Meta)
}
