package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/karl-ai/corehub/internal/common/errors"
	"github.com/karl-ai/corehub/internal/task/models"
	v1 "github.com/karl-ai/corehub/pkg/api/v1"
)

// MemoryRepository provides in-memory task storage, the default for
// development and tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	tasks  map[string]*models.Task
	events []*models.Event
}

// Ensure MemoryRepository implements Repository interface
var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates a new in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tasks: make(map[string]*models.Task),
	}
}

// CreateTask creates a new task
func (r *MemoryRepository) CreateTask(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if _, exists := r.tasks[task.ID]; exists {
		return errors.Conflict("task " + task.ID + " already exists")
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	stored := *task
	r.tasks[task.ID] = &stored
	return nil
}

// GetTask retrieves a task by ID
func (r *MemoryRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, errors.NotFound("task", id)
	}
	copied := *task
	return &copied, nil
}

// UpdateTask updates an existing task
func (r *MemoryRepository) UpdateTask(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tasks[task.ID]
	if !ok {
		return errors.NotFound("task", task.ID)
	}
	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = time.Now().UTC()

	stored := *task
	r.tasks[task.ID] = &stored
	return nil
}

// DeleteTask deletes a task by ID
func (r *MemoryRepository) DeleteTask(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return errors.NotFound("task", id)
	}
	delete(r.tasks, id)
	return nil
}

// ListTasks returns tasks, optionally filtered by state, ordered by
// priority (1 first) then creation time.
func (r *MemoryRepository) ListTasks(ctx context.Context, state v1.TaskState) ([]*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*models.Task{}
	for _, task := range r.tasks {
		if state != "" && task.State != state {
			continue
		}
		copied := *task
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority < result[j].Priority
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// UpdateTaskState updates the state of a task
func (r *MemoryRepository) UpdateTaskState(ctx context.Context, id string, state v1.TaskState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return errors.NotFound("task", id)
	}
	task.State = state
	task.UpdatedAt = time.Now().UTC()
	return nil
}

// TaskStats counts tasks by state
func (r *MemoryRepository) TaskStats(ctx context.Context) (*v1.TaskStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &v1.TaskStats{Total: len(r.tasks)}
	for _, task := range r.tasks {
		switch task.State {
		case v1.TaskStateTodo:
			stats.Todo++
		case v1.TaskStateInProgress:
			stats.InProgress++
		case v1.TaskStateDone:
			stats.Done++
		case v1.TaskStateBlocked:
			stats.Blocked++
		}
	}
	return stats, nil
}

// CreateEvent appends an event log entry
func (r *MemoryRepository) CreateEvent(ctx context.Context, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	event.CreatedAt = time.Now().UTC()

	stored := *event
	r.events = append(r.events, &stored)
	return nil
}

// ListEvents returns the most recent events, newest first
func (r *MemoryRepository) ListEvents(ctx context.Context, limit int) ([]*models.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*models.Event{}
	for i := len(r.events) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		copied := *r.events[i]
		result = append(result, &copied)
	}
	return result, nil
}

// Close is a no-op for the in-memory repository
func (r *MemoryRepository) Close() error {
	return nil
}
