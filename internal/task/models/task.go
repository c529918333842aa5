// Package models holds the internal task store records.
package models

import (
	"time"

	v1 "github.com/karl-ai/corehub/pkg/api/v1"
)

// Task is the stored representation of a tracked task.
type Task struct {
	ID          string
	Title       string
	Description string
	Type        v1.TaskType
	State       v1.TaskState
	Priority    int
	Acceptance  []string
	AssignedTo  string
	Metadata    map[string]interface{}
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ToV1 converts the stored task to its API representation.
func (t *Task) ToV1() *v1.Task {
	return &v1.Task{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Type:        t.Type,
		State:       t.State,
		Priority:    t.Priority,
		Acceptance:  t.Acceptance,
		AssignedTo:  t.AssignedTo,
		Metadata:    t.Metadata,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// Event is a stored agent event log entry.
type Event struct {
	ID        string
	Agent     string
	Type      string
	TaskID    string
	Payload   map[string]interface{}
	CreatedAt time.Time
}

// ToV1 converts the stored event to its API representation.
func (e *Event) ToV1() *v1.AgentEvent {
	return &v1.AgentEvent{
		ID:        e.ID,
		Agent:     e.Agent,
		Type:      e.Type,
		TaskID:    e.TaskID,
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt,
	}
}
