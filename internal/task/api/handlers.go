package api

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/karl-ai/corehub/internal/common/errors"
	"github.com/karl-ai/corehub/internal/common/logger"
	"github.com/karl-ai/corehub/internal/task/models"
	"github.com/karl-ai/corehub/internal/task/service"
	v1 "github.com/karl-ai/corehub/pkg/api/v1"
)

// Handler contains HTTP handlers for the task API
type Handler struct {
	service *service.Service
	logger  *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{
		service: svc,
		logger:  log,
	}
}

// respondError maps service errors to HTTP responses.
func respondError(c *gin.Context, err error, fallback string) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	internal := errors.InternalError(fallback, err)
	c.JSON(internal.HTTPStatus, internal)
}

// CreateTask creates a new task
// POST /api/v1/tasks
func (h *Handler) CreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := errors.BadRequest(err.Error())
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	task, err := h.service.CreateTask(c.Request.Context(), &models.Task{
		Title:       req.Title,
		Description: req.Description,
		Type:        v1.TaskType(req.Type),
		Priority:    req.Priority,
		Acceptance:  req.Acceptance,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.logger.Error("failed to create task", zap.Error(err))
		respondError(c, err, "failed to create task")
		return
	}

	c.JSON(http.StatusCreated, task)
}

// GetTask retrieves a task by ID
// GET /api/v1/tasks/:taskId
func (h *Handler) GetTask(c *gin.Context) {
	taskID := c.Param("taskId")

	task, err := h.service.GetTask(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, err, "failed to get task")
		return
	}

	c.JSON(http.StatusOK, task)
}

// ListTasks returns tasks, optionally filtered by ?state=
// GET /api/v1/tasks
func (h *Handler) ListTasks(c *gin.Context) {
	state := v1.TaskState(c.Query("state"))

	tasks, err := h.service.ListTasks(c.Request.Context(), state)
	if err != nil {
		respondError(c, err, "failed to list tasks")
		return
	}

	c.JSON(http.StatusOK, TaskListResponse{Tasks: tasks, Count: len(tasks)})
}

// NextTask claims the most urgent todo task for an agent. Responds 204 when
// the system is paused or nothing is claimable.
// POST /api/v1/tasks/next
func (h *Handler) NextTask(c *gin.Context) {
	var req NextTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := errors.BadRequest(err.Error())
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	task, err := h.service.NextTask(c.Request.Context(), req.Agent)
	if err != nil {
		h.logger.Error("failed to claim task", zap.String("agent", req.Agent), zap.Error(err))
		respondError(c, err, "failed to claim task")
		return
	}
	if task == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, task)
}

// UpdateStatus sets a task's state
// PUT /api/v1/tasks/:taskId/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	taskID := c.Param("taskId")

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := errors.BadRequest(err.Error())
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	task, err := h.service.UpdateStatus(c.Request.Context(), taskID, v1.TaskState(req.Status))
	if err != nil {
		respondError(c, err, "failed to update task status")
		return
	}

	c.JSON(http.StatusOK, task)
}

// LogEvent records an agent event
// POST /api/v1/events/log
func (h *Handler) LogEvent(c *gin.Context) {
	var req LogEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := errors.BadRequest(err.Error())
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	event, err := h.service.LogEvent(c.Request.Context(), &models.Event{
		Agent:   req.Agent,
		Type:    req.Type,
		TaskID:  req.TaskID,
		Payload: req.Payload,
	})
	if err != nil {
		respondError(c, err, "failed to log event")
		return
	}

	c.JSON(http.StatusCreated, event)
}

// ListEvents returns recent agent events, ?limit= caps the count
// GET /api/v1/events
func (h *Handler) ListEvents(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			appErr := errors.BadRequest("limit must be a positive integer")
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		limit = parsed
	}

	events, err := h.service.ListEvents(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, "failed to list events")
		return
	}

	c.JSON(http.StatusOK, EventListResponse{Events: events, Count: len(events)})
}

// GetPause reports the system pause switch
// GET /api/v1/admin/pause
func (h *Handler) GetPause(c *gin.Context) {
	c.JSON(http.StatusOK, PauseResponse{SystemPaused: h.service.IsPaused()})
}

// SetPause flips the system pause switch
// POST /api/v1/admin/pause
func (h *Handler) SetPause(c *gin.Context) {
	var req PauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := errors.BadRequest(err.Error())
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	h.service.SetPaused(*req.Paused)
	c.JSON(http.StatusOK, PauseResponse{SystemPaused: h.service.IsPaused()})
}

// Health reports service liveness
// GET /api/v1/health
func (h *Handler) Health(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, "health check failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"system_paused": h.service.IsPaused(),
		"queue_length":  h.service.QueueLength(),
		"tasks":         stats,
	})
}
