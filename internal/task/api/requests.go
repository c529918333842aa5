package api

import v1 "github.com/karl-ai/corehub/pkg/api/v1"

// CreateTaskRequest is the payload for POST /api/v1/tasks
type CreateTaskRequest struct {
	Title       string                 `json:"title" binding:"required"`
	Description string                 `json:"description"`
	Type        string                 `json:"type"`
	Priority    int                    `json:"priority"`
	Acceptance  []string               `json:"acceptance"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// NextTaskRequest is the payload for POST /api/v1/tasks/next
type NextTaskRequest struct {
	Agent string `json:"agent" binding:"required"`
}

// UpdateStatusRequest is the payload for PUT /api/v1/tasks/:taskId/status
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// LogEventRequest is the payload for POST /api/v1/events/log
type LogEventRequest struct {
	Agent   string                 `json:"agent" binding:"required"`
	Type    string                 `json:"type" binding:"required"`
	TaskID  string                 `json:"task_id"`
	Payload map[string]interface{} `json:"payload"`
}

// PauseRequest is the payload for POST /api/v1/admin/pause
type PauseRequest struct {
	Paused *bool `json:"paused" binding:"required"`
}

// PauseResponse reports the system pause switch
type PauseResponse struct {
	SystemPaused bool `json:"system_paused"`
}

// TaskListResponse wraps a task list
type TaskListResponse struct {
	Tasks []*v1.Task `json:"tasks"`
	Count int        `json:"count"`
}

// EventListResponse wraps an event list
type EventListResponse struct {
	Events []*v1.AgentEvent `json:"events"`
	Count  int              `json:"count"`
}
