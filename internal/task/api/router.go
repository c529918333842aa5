package api

import (
	"github.com/gin-gonic/gin"

	"github.com/karl-ai/corehub/internal/common/logger"
	"github.com/karl-ai/corehub/internal/task/service"
)

// SetupRoutes configures the task API routes
func SetupRoutes(router *gin.RouterGroup, svc *service.Service, log *logger.Logger) {
	handler := NewHandler(svc, log)

	// Task routes
	tasks := router.Group("/tasks")
	{
		tasks.POST("", handler.CreateTask)
		tasks.GET("", handler.ListTasks)
		tasks.POST("/next", handler.NextTask)
		tasks.GET("/:taskId", handler.GetTask)
		tasks.PUT("/:taskId/status", handler.UpdateStatus)
	}

	// Agent event log
	events := router.Group("/events")
	{
		events.POST("/log", handler.LogEvent)
		events.GET("", handler.ListEvents)
	}

	// Admin
	admin := router.Group("/admin")
	{
		admin.GET("/pause", handler.GetPause)
		admin.POST("/pause", handler.SetPause)
	}

	router.GET("/health", handler.Health)
}
