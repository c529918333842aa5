package service

import (
	"context"
	"testing"

	"github.com/karl-ai/corehub/internal/common/logger"
	"github.com/karl-ai/corehub/internal/task/models"
	"github.com/karl-ai/corehub/internal/task/repository"
	v1 "github.com/karl-ai/corehub/pkg/api/v1"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(context.Background(), repository.NewMemoryRepository(), nil, logger.Default())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return s
}

func TestCreateTaskDefaults(t *testing.T) {
	s := newTestService(t)

	task, err := s.CreateTask(context.Background(), &models.Task{Title: "fix login", Type: "weird"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.State != v1.TaskStateTodo {
		t.Errorf("state = %s, want todo", task.State)
	}
	if task.Priority != DefaultPriority {
		t.Errorf("priority = %d, want %d", task.Priority, DefaultPriority)
	}
	if task.Type != v1.TaskTypeOther {
		t.Errorf("type = %s, want other (unknown types are normalized)", task.Type)
	}
	if task.ID == "" {
		t.Error("task ID not assigned")
	}
}

func TestCreateTaskValidation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if _, err := s.CreateTask(ctx, &models.Task{}); err == nil {
		t.Error("empty title should fail")
	}
	if _, err := s.CreateTask(ctx, &models.Task{Title: "x", Priority: -1}); err == nil {
		t.Error("negative priority should fail")
	}
}

func TestNextTaskClaimOrder(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	low, _ := s.CreateTask(ctx, &models.Task{Title: "low", Priority: 5})
	urgent, _ := s.CreateTask(ctx, &models.Task{Title: "urgent", Priority: 1})

	claimed, err := s.NextTask(ctx, "devagent")
	if err != nil {
		t.Fatalf("NextTask: %v", err)
	}
	if claimed == nil || claimed.ID != urgent.ID {
		t.Fatalf("claimed %+v, want urgent task", claimed)
	}
	if claimed.State != v1.TaskStateInProgress {
		t.Errorf("claimed state = %s, want in_progress", claimed.State)
	}
	if claimed.AssignedTo != "devagent" {
		t.Errorf("assigned to %q", claimed.AssignedTo)
	}

	second, _ := s.NextTask(ctx, "devagent")
	if second == nil || second.ID != low.ID {
		t.Fatalf("second claim = %+v, want low task", second)
	}

	third, err := s.NextTask(ctx, "devagent")
	if err != nil {
		t.Fatalf("NextTask on empty queue: %v", err)
	}
	if third != nil {
		t.Errorf("empty queue claim = %+v, want nil", third)
	}
}

func TestNextTaskWhilePaused(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, _ = s.CreateTask(ctx, &models.Task{Title: "work"})

	s.SetPaused(true)
	if !s.IsPaused() {
		t.Fatal("IsPaused = false after SetPaused(true)")
	}
	if task, err := s.NextTask(ctx, "devagent"); err != nil || task != nil {
		t.Errorf("paused claim = %v, %v; want nil, nil", task, err)
	}

	s.SetPaused(false)
	if task, _ := s.NextTask(ctx, "devagent"); task == nil {
		t.Error("unpaused claim returned nothing")
	}
}

func TestNextTaskSkipsStaleQueueEntries(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	a, _ := s.CreateTask(ctx, &models.Task{Title: "a", Priority: 1})
	b, _ := s.CreateTask(ctx, &models.Task{Title: "b", Priority: 2})

	// Move the head of the queue out of todo behind the queue's back
	if _, err := s.UpdateStatus(ctx, a.ID, v1.TaskStateBlocked); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	claimed, err := s.NextTask(ctx, "devagent")
	if err != nil {
		t.Fatalf("NextTask: %v", err)
	}
	if claimed == nil || claimed.ID != b.ID {
		t.Errorf("claimed %+v, want task b", claimed)
	}
}

func TestUpdateStatusRequeue(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	task, _ := s.CreateTask(ctx, &models.Task{Title: "flaky"})
	claimed, _ := s.NextTask(ctx, "devagent")
	if claimed == nil {
		t.Fatal("claim failed")
	}

	if _, err := s.UpdateStatus(ctx, task.ID, v1.TaskStateTodo); err != nil {
		t.Fatalf("UpdateStatus back to todo: %v", err)
	}
	reclaimed, _ := s.NextTask(ctx, "devagent")
	if reclaimed == nil || reclaimed.ID != task.ID {
		t.Errorf("reclaim = %+v, want original task", reclaimed)
	}

	if _, err := s.UpdateStatus(ctx, task.ID, "bogus"); err == nil {
		t.Error("invalid state should fail")
	}
	if _, err := s.UpdateStatus(ctx, "missing", v1.TaskStateDone); err == nil {
		t.Error("unknown task should fail")
	}
}

func TestLogEventAndStats(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	task, _ := s.CreateTask(ctx, &models.Task{Title: "work"})
	_, _ = s.NextTask(ctx, "devagent")
	_, _ = s.UpdateStatus(ctx, task.ID, v1.TaskStateDone)

	event, err := s.LogEvent(ctx, &models.Event{
		Agent:  "devagent",
		Type:   "task_completed",
		TaskID: task.ID,
	})
	if err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	if event.ID == "" {
		t.Error("event ID not assigned")
	}

	if _, err := s.LogEvent(ctx, &models.Event{Type: "x"}); err == nil {
		t.Error("event without agent should fail")
	}

	events, err := s.ListEvents(ctx, 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("events = %d, want 1", len(events))
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 1 || stats.Done != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
