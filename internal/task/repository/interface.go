// Package repository provides task and event storage backends.
package repository

import (
	"context"

	"github.com/karl-ai/corehub/internal/task/models"
	v1 "github.com/karl-ai/corehub/pkg/api/v1"
)

// Repository defines the interface for task storage operations
type Repository interface {
	// Task operations
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, state v1.TaskState) ([]*models.Task, error)
	UpdateTaskState(ctx context.Context, id string, state v1.TaskState) error
	TaskStats(ctx context.Context) (*v1.TaskStats, error)

	// Event log operations
	CreateEvent(ctx context.Context, event *models.Event) error
	ListEvents(ctx context.Context, limit int) ([]*models.Event, error)

	// Close closes the repository (for database connections)
	Close() error
}
