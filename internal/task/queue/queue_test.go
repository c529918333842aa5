package queue

import (
	"testing"
	"testing/synctest"
	"time"

	"github.com/karl-ai/corehub/internal/task/models"
	v1 "github.com/karl-ai/corehub/pkg/api/v1"
)

func createTestTask(id string, priority int) *models.Task {
	return &models.Task{
		ID:       id,
		Title:    "task " + id,
		Type:     v1.TaskTypeDev,
		State:    v1.TaskStateTodo,
		Priority: priority,
	}
}

func TestPriorityOrdering(t *testing.T) {
	q := NewReadyQueue()

	_ = q.Enqueue(createTestTask("low", 5))
	_ = q.Enqueue(createTestTask("urgent", 1))
	_ = q.Enqueue(createTestTask("mid", 3))

	for _, want := range []string{"urgent", "mid", "low"} {
		got := q.Dequeue()
		if got == nil {
			t.Fatalf("Dequeue returned nil, want %s", want)
		}
		if got.TaskID != want {
			t.Errorf("dequeued %s, want %s", got.TaskID, want)
		}
	}

	if q.Dequeue() != nil {
		t.Error("empty queue should dequeue nil")
	}
}

func TestFIFOWithSamePriority(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		q := NewReadyQueue()

		// Same priority - should be FIFO.
		// 1s sleeps with the synctest fake clock give distinct timestamps instantly.
		_ = q.Enqueue(createTestTask("first", 2))
		time.Sleep(1 * time.Second)
		_ = q.Enqueue(createTestTask("second", 2))
		time.Sleep(1 * time.Second)
		_ = q.Enqueue(createTestTask("third", 2))

		for _, want := range []string{"first", "second", "third"} {
			if got := q.Dequeue(); got.TaskID != want {
				t.Errorf("dequeued %s, want %s", got.TaskID, want)
			}
		}
	})
}

func TestDuplicateEnqueue(t *testing.T) {
	q := NewReadyQueue()

	if err := q.Enqueue(createTestTask("a", 1)); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := q.Enqueue(createTestTask("a", 2)); err != ErrTaskExists {
		t.Errorf("duplicate enqueue error = %v, want ErrTaskExists", err)
	}
	if q.Len() != 1 {
		t.Errorf("queue length = %d, want 1", q.Len())
	}
}

func TestRemove(t *testing.T) {
	q := NewReadyQueue()
	_ = q.Enqueue(createTestTask("a", 1))
	_ = q.Enqueue(createTestTask("b", 2))

	if !q.Remove("a") {
		t.Error("Remove of queued task returned false")
	}
	if q.Remove("a") {
		t.Error("second Remove returned true")
	}
	if q.Contains("a") {
		t.Error("removed task still present")
	}
	if got := q.Dequeue(); got.TaskID != "b" {
		t.Errorf("dequeued %s, want b", got.TaskID)
	}
}

func TestUpdatePriority(t *testing.T) {
	q := NewReadyQueue()
	_ = q.Enqueue(createTestTask("a", 5))
	_ = q.Enqueue(createTestTask("b", 3))

	if !q.UpdatePriority("a", 1) {
		t.Fatal("UpdatePriority returned false")
	}
	if got := q.Peek(); got.TaskID != "a" {
		t.Errorf("peek after reprioritize = %s, want a", got.TaskID)
	}
	if q.UpdatePriority("missing", 1) {
		t.Error("UpdatePriority of unknown task returned true")
	}
}
