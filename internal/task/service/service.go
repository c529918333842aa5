// Package service implements the CoreHub task operations on top of the
// repository and ready queue.
package service

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/karl-ai/corehub/internal/common/errors"
	"github.com/karl-ai/corehub/internal/common/logger"
	"github.com/karl-ai/corehub/internal/events/bus"
	"github.com/karl-ai/corehub/internal/task/models"
	"github.com/karl-ai/corehub/internal/task/queue"
	"github.com/karl-ai/corehub/internal/task/repository"
	v1 "github.com/karl-ai/corehub/pkg/api/v1"
)

// DefaultPriority is assigned when a task is created without one.
const DefaultPriority = 3

// Service coordinates task storage, the ready queue, the agent event log
// and the system pause switch.
type Service struct {
	repo     repository.Repository
	ready    *queue.ReadyQueue
	eventBus bus.EventBus
	paused   atomic.Bool
	logger   *logger.Logger
}

// NewService creates a task service and fills the ready queue with the
// stored todo tasks, so claims survive a restart.
func NewService(ctx context.Context, repo repository.Repository, eventBus bus.EventBus, log *logger.Logger) (*Service, error) {
	s := &Service{
		repo:     repo,
		ready:    queue.NewReadyQueue(),
		eventBus: eventBus,
		logger:   log,
	}

	todos, err := repo.ListTasks(ctx, v1.TaskStateTodo)
	if err != nil {
		return nil, err
	}
	for _, task := range todos {
		_ = s.ready.Enqueue(task)
	}
	if len(todos) > 0 {
		log.Info("Restored ready queue", zap.Int("tasks", len(todos)))
	}
	return s, nil
}

func (s *Service) publish(ctx context.Context, subject string, data map[string]interface{}) {
	if s.eventBus == nil {
		return
	}
	event := bus.NewEvent(subject, "corehub", data)
	if err := s.eventBus.Publish(ctx, subject, event); err != nil {
		s.logger.Warn("Failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}

// CreateTask validates and stores a new task and makes it claimable.
func (s *Service) CreateTask(ctx context.Context, task *models.Task) (*v1.Task, error) {
	if task.Title == "" {
		return nil, errors.ValidationError("title", "must not be empty")
	}
	if task.Priority == 0 {
		task.Priority = DefaultPriority
	}
	if task.Priority < 1 {
		return nil, errors.ValidationError("priority", "must be at least 1")
	}
	task.Type = task.Type.Normalize()
	task.State = v1.TaskStateTodo

	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	_ = s.ready.Enqueue(task)

	s.logger.Info("Task created",
		zap.String("task_id", task.ID),
		zap.Int("priority", task.Priority))
	s.publish(ctx, bus.SubjectTaskCreated, map[string]interface{}{
		"task_id":  task.ID,
		"title":    task.Title,
		"priority": task.Priority,
	})
	return task.ToV1(), nil
}

// GetTask returns the task with the given ID.
func (s *Service) GetTask(ctx context.Context, id string) (*v1.Task, error) {
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return task.ToV1(), nil
}

// ListTasks returns tasks ordered by priority, optionally filtered by state.
func (s *Service) ListTasks(ctx context.Context, state v1.TaskState) ([]*v1.Task, error) {
	if state != "" && !state.Valid() {
		return nil, errors.BadRequest("unknown task state: " + string(state))
	}
	tasks, err := s.repo.ListTasks(ctx, state)
	if err != nil {
		return nil, err
	}
	out := make([]*v1.Task, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.ToV1())
	}
	return out, nil
}

// NextTask claims the most urgent todo task for the agent, moving it to
// in_progress. Returns nil when the system is paused or no task is ready.
func (s *Service) NextTask(ctx context.Context, agent string) (*v1.Task, error) {
	if s.paused.Load() {
		return nil, nil
	}

	for {
		queued := s.ready.Dequeue()
		if queued == nil {
			return nil, nil
		}

		task, err := s.repo.GetTask(ctx, queued.TaskID)
		if err != nil {
			if errors.IsNotFound(err) {
				continue // deleted while queued
			}
			return nil, err
		}
		if task.State != v1.TaskStateTodo {
			continue // claimed or moved out of band
		}

		task.State = v1.TaskStateInProgress
		task.AssignedTo = agent
		if err := s.repo.UpdateTask(ctx, task); err != nil {
			return nil, err
		}

		s.logger.Info("Task claimed",
			zap.String("task_id", task.ID),
			zap.String("agent", agent))
		s.publish(ctx, bus.SubjectTaskStatusChanged, map[string]interface{}{
			"task_id": task.ID,
			"state":   string(task.State),
			"agent":   agent,
		})
		return task.ToV1(), nil
	}
}

// UpdateStatus sets the task's state. Moving a task back to todo makes it
// claimable again.
func (s *Service) UpdateStatus(ctx context.Context, id string, state v1.TaskState) (*v1.Task, error) {
	if !state.Valid() {
		return nil, errors.BadRequest("unknown task state: " + string(state))
	}

	if err := s.repo.UpdateTaskState(ctx, id, state); err != nil {
		return nil, err
	}
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if state == v1.TaskStateTodo {
		_ = s.ready.Enqueue(task)
	} else {
		s.ready.Remove(id)
	}

	s.logger.Info("Task status updated",
		zap.String("task_id", id),
		zap.String("state", string(state)))
	s.publish(ctx, bus.SubjectTaskStatusChanged, map[string]interface{}{
		"task_id": id,
		"state":   string(state),
	})
	return task.ToV1(), nil
}

// LogEvent records an agent event.
func (s *Service) LogEvent(ctx context.Context, event *models.Event) (*v1.AgentEvent, error) {
	if event.Agent == "" {
		return nil, errors.ValidationError("agent", "must not be empty")
	}
	if event.Type == "" {
		return nil, errors.ValidationError("type", "must not be empty")
	}

	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return nil, err
	}

	s.publish(ctx, bus.SubjectEventLogged, map[string]interface{}{
		"event_id": event.ID,
		"agent":    event.Agent,
		"type":     event.Type,
		"task_id":  event.TaskID,
	})
	return event.ToV1(), nil
}

// ListEvents returns the most recent agent events, newest first.
func (s *Service) ListEvents(ctx context.Context, limit int) ([]*v1.AgentEvent, error) {
	events, err := s.repo.ListEvents(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*v1.AgentEvent, 0, len(events))
	for _, event := range events {
		out = append(out, event.ToV1())
	}
	return out, nil
}

// Stats counts tasks by state.
func (s *Service) Stats(ctx context.Context) (*v1.TaskStats, error) {
	return s.repo.TaskStats(ctx)
}

// SetPaused flips the system pause switch. While paused, NextTask claims
// return nothing.
func (s *Service) SetPaused(paused bool) {
	s.paused.Store(paused)
	s.logger.Info("System pause changed", zap.Bool("paused", paused))
}

// IsPaused reports the system pause switch.
func (s *Service) IsPaused() bool {
	return s.paused.Load()
}

// QueueLength reports how many tasks are currently claimable.
func (s *Service) QueueLength() int {
	return s.ready.Len()
}
