package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/karl-ai/corehub/internal/common/logger"
)

func collect(t *testing.T, ch <-chan *Event, want int) []*Event {
	t.Helper()
	var got []*Event
	timeout := time.After(2 * time.Second)
	for len(got) < want {
		select {
		case e := <-ch:
			got = append(got, e)
		case <-timeout:
			t.Fatalf("timed out waiting for events: got %d, want %d", len(got), want)
		}
	}
	return got
}

func TestMemoryBusExactSubject(t *testing.T) {
	b := NewMemoryEventBus(logger.Default())
	defer b.Close()

	received := make(chan *Event, 1)
	if _, err := b.Subscribe(SubjectTaskCreated, func(ctx context.Context, e *Event) error {
		received <- e
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	event := NewEvent("task.created", "test", map[string]interface{}{"task_id": "t1"})
	if err := b.Publish(context.Background(), SubjectTaskCreated, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := collect(t, received, 1)
	if got[0].ID != event.ID {
		t.Errorf("event ID = %s, want %s", got[0].ID, event.ID)
	}
}

func TestMemoryBusWildcards(t *testing.T) {
	b := NewMemoryEventBus(logger.Default())
	defer b.Close()

	star := make(chan *Event, 4)
	gt := make(chan *Event, 4)
	_, _ = b.Subscribe("task.*", func(ctx context.Context, e *Event) error {
		star <- e
		return nil
	})
	_, _ = b.Subscribe("task.>", func(ctx context.Context, e *Event) error {
		gt <- e
		return nil
	})

	ctx := context.Background()
	_ = b.Publish(ctx, "task.created", NewEvent("task.created", "test", nil))
	_ = b.Publish(ctx, "task.status.changed", NewEvent("task.status.changed", "test", nil))

	// "task.*" matches a single token, "task.>" matches the rest
	collect(t, gt, 2)
	got := collect(t, star, 1)
	if got[0].Type != "task.created" {
		t.Errorf("star subscriber got %s, want task.created", got[0].Type)
	}
	select {
	case e := <-star:
		t.Errorf("star subscriber unexpectedly received %s", e.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryBusQueueGroupSingleDelivery(t *testing.T) {
	b := NewMemoryEventBus(logger.Default())
	defer b.Close()

	var mu sync.Mutex
	deliveries := 0
	handler := func(ctx context.Context, e *Event) error {
		mu.Lock()
		deliveries++
		mu.Unlock()
		return nil
	}
	_, _ = b.QueueSubscribe("alert.created", "workers", handler)
	_, _ = b.QueueSubscribe("alert.created", "workers", handler)

	_ = b.Publish(context.Background(), "alert.created", NewEvent("alert.created", "test", nil))

	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if deliveries != 1 {
		t.Errorf("queue group deliveries = %d, want 1", deliveries)
	}
}

func TestMemoryBusConcurrentQueuePublish(t *testing.T) {
	b := NewMemoryEventBus(logger.Default())
	defer b.Close()

	var mu sync.Mutex
	deliveries := 0
	handler := func(ctx context.Context, e *Event) error {
		mu.Lock()
		deliveries++
		mu.Unlock()
		return nil
	}
	_, _ = b.QueueSubscribe("task.created", "workers", handler)
	_, _ = b.QueueSubscribe("task.created", "workers", handler)

	const publishes = 64
	var wg sync.WaitGroup
	for i := 0; i < publishes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Publish(context.Background(), "task.created", NewEvent("task.created", "test", nil))
		}()
	}
	wg.Wait()

	// Each publish is delivered to exactly one group member.
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		got := deliveries
		mu.Unlock()
		if got == publishes {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("deliveries = %d, want %d", got, publishes)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	b := NewMemoryEventBus(logger.Default())
	defer b.Close()

	received := make(chan *Event, 1)
	sub, _ := b.Subscribe("task.created", func(ctx context.Context, e *Event) error {
		received <- e
		return nil
	})

	if !sub.IsValid() {
		t.Fatal("subscription should be valid")
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if sub.IsValid() {
		t.Error("subscription should be invalid after unsubscribe")
	}

	_ = b.Publish(context.Background(), "task.created", NewEvent("task.created", "test", nil))
	select {
	case <-received:
		t.Error("unsubscribed handler received event")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryBusClosedPublish(t *testing.T) {
	b := NewMemoryEventBus(logger.Default())
	b.Close()

	if b.IsConnected() {
		t.Error("closed bus reports connected")
	}
	if err := b.Publish(context.Background(), "task.created", NewEvent("task.created", "test", nil)); err == nil {
		t.Error("publish on closed bus should fail")
	}
}
