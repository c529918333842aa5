// Package v1 defines the public API types shared between CoreHub and the agents.
package v1

import "time"

// TaskState represents the lifecycle state of a task
type TaskState string

const (
	TaskStateTodo       TaskState = "todo"
	TaskStateInProgress TaskState = "in_progress"
	TaskStateDone       TaskState = "done"
	TaskStateBlocked    TaskState = "blocked"
)

// Valid reports whether the state is one of the known task states.
func (s TaskState) Valid() bool {
	switch s {
	case TaskStateTodo, TaskStateInProgress, TaskStateDone, TaskStateBlocked:
		return true
	}
	return false
}

// TaskType classifies a task for planning purposes
type TaskType string

const (
	TaskTypeDev   TaskType = "dev"
	TaskTypeOps   TaskType = "ops"
	TaskTypeOther TaskType = "other"
)

// Normalize maps unknown type strings to TaskTypeOther.
func (t TaskType) Normalize() TaskType {
	switch t {
	case TaskTypeDev, TaskTypeOps:
		return t
	}
	return TaskTypeOther
}

// Task represents a unit of work tracked by CoreHub.
// Priority 1 is the most urgent; larger numbers queue later.
type Task struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Type        TaskType               `json:"type"`
	State       TaskState              `json:"state"`
	Priority    int                    `json:"priority"`
	Acceptance  []string               `json:"acceptance,omitempty"`
	AssignedTo  string                 `json:"assigned_to,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// AgentEvent is a log entry reported by an agent to CoreHub.
type AgentEvent struct {
	ID        string                 `json:"id"`
	Agent     string                 `json:"agent"`
	Type      string                 `json:"type"`
	TaskID    string                 `json:"task_id,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// TaskStats summarizes task counts by state, used by the business metrics
// collector and the daily report.
type TaskStats struct {
	Total      int `json:"total"`
	Todo       int `json:"todo"`
	InProgress int `json:"in_progress"`
	Done       int `json:"done"`
	Blocked    int `json:"blocked"`
}
