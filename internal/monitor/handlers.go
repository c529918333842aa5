package monitor

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/karl-ai/corehub/internal/alerts"
	"github.com/karl-ai/corehub/internal/cache"
	"github.com/karl-ai/corehub/internal/common/errors"
	"github.com/karl-ai/corehub/internal/common/logger"
	"github.com/karl-ai/corehub/internal/metrics"
	"github.com/karl-ai/corehub/internal/task/service"
)

// dashboardCacheTTL bounds how stale the dashboard summary may get.
const dashboardCacheTTL = 10 * time.Second

// Handler serves the monitoring and dashboard endpoints.
type Handler struct {
	service   *Service
	collector *metrics.Collector
	alerts    *alerts.Manager
	cache     *cache.Cache
	tasks     *service.Service
	logger    *logger.Logger
}

// NewHandler creates the monitoring API handler.
func NewHandler(svc *Service, collector *metrics.Collector, alertMgr *alerts.Manager, c *cache.Cache, tasks *service.Service, log *logger.Logger) *Handler {
	return &Handler{
		service:   svc,
		collector: collector,
		alerts:    alertMgr,
		cache:     c,
		tasks:     tasks,
		logger:    log,
	}
}

// SetupRoutes configures the monitoring API routes.
func SetupRoutes(router *gin.RouterGroup, h *Handler) {
	monitoring := router.Group("/monitoring")
	{
		monitoring.GET("/status", h.GetStatus)
		monitoring.GET("/metrics", h.GetMetricsSummary)
		monitoring.GET("/metrics/:family/history", h.GetMetricsHistory)
		monitoring.GET("/alerts", h.ListAlerts)
		monitoring.GET("/alerts/summary", h.GetAlertsSummary)
		monitoring.POST("/alerts/:alertId/acknowledge", h.AcknowledgeAlert)
		monitoring.POST("/alerts/:alertId/resolve", h.ResolveAlert)
		monitoring.GET("/cache", h.GetCacheStats)
		monitoring.POST("/cache/invalidate", h.InvalidateCache)
	}
	router.GET("/dashboard/summary", h.GetDashboardSummary)
}

// GetStatus reports the monitoring loops' state
// GET /api/v1/monitoring/status
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Status())
}

// GetMetricsSummary returns the latest sample per family
// GET /api/v1/monitoring/metrics
func (h *Handler) GetMetricsSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.collector.Summary())
}

// GetMetricsHistory returns samples from the last ?hours= (default 1)
// GET /api/v1/monitoring/metrics/:family/history
func (h *Handler) GetMetricsHistory(c *gin.Context) {
	family := metrics.Family(c.Param("family"))

	hours := 1
	if raw := c.Query("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			appErr := errors.BadRequest("hours must be a positive integer")
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		hours = parsed
	}

	samples, err := h.collector.Historical(family, hours)
	if err != nil {
		appErr := errors.BadRequest(err.Error())
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"family":  family,
		"hours":   hours,
		"samples": samples,
		"count":   len(samples),
	})
}

// ListAlerts returns active alerts, or all alerts of ?severity=
// GET /api/v1/monitoring/alerts
func (h *Handler) ListAlerts(c *gin.Context) {
	var list []*alerts.Alert
	if severity := c.Query("severity"); severity != "" {
		list = h.alerts.BySeverity(severity)
	} else {
		list = h.alerts.ActiveAlerts()
	}
	c.JSON(http.StatusOK, gin.H{"alerts": list, "count": len(list)})
}

// GetAlertsSummary counts alerts by status and severity
// GET /api/v1/monitoring/alerts/summary
func (h *Handler) GetAlertsSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.alerts.Summarize())
}

// AcknowledgeAlert moves an alert to acknowledged, recording the actor from
// the optional request body
// POST /api/v1/monitoring/alerts/:alertId/acknowledge
func (h *Handler) AcknowledgeAlert(c *gin.Context) {
	var req struct {
		By string `json:"by"`
	}
	// Body is optional; an absent or empty actor falls back to "api".
	_ = c.ShouldBindJSON(&req)
	if req.By == "" {
		req.By = "api"
	}

	alert, err := h.alerts.Acknowledge(c.Request.Context(), c.Param("alertId"), req.By)
	if err != nil {
		respondAlertError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

// ResolveAlert moves an alert to resolved
// POST /api/v1/monitoring/alerts/:alertId/resolve
func (h *Handler) ResolveAlert(c *gin.Context) {
	alert, err := h.alerts.Resolve(c.Request.Context(), c.Param("alertId"))
	if err != nil {
		respondAlertError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func respondAlertError(c *gin.Context, err error) {
	if appErr, ok := err.(*errors.AppError); ok {
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	internal := errors.InternalError("alert operation failed", err)
	c.JSON(internal.HTTPStatus, internal)
}

// GetCacheStats returns the shared cache counters
// GET /api/v1/monitoring/cache
func (h *Handler) GetCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats())
}

// InvalidateCache removes cache keys matching a pattern
// POST /api/v1/monitoring/cache/invalidate
func (h *Handler) InvalidateCache(c *gin.Context) {
	var req struct {
		Pattern string `json:"pattern" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := errors.BadRequest(err.Error())
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	removed, err := h.cache.InvalidatePattern(req.Pattern)
	if err != nil {
		appErr := errors.BadRequest(err.Error())
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	h.logger.Info("Cache invalidated",
		zap.String("pattern", req.Pattern),
		zap.Int("removed", removed))
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// GetDashboardSummary returns the combined dashboard view, cached briefly
// to keep repeated dashboard polls off the task store.
// GET /api/v1/dashboard/summary
func (h *Handler) GetDashboardSummary(c *gin.Context) {
	summary, err := h.cache.GetOrCompute("dashboard:summary", dashboardCacheTTL, func() (interface{}, error) {
		stats, err := h.tasks.Stats(c.Request.Context())
		if err != nil {
			return nil, err
		}
		return gin.H{
			"tasks":      stats,
			"metrics":    h.collector.Summary(),
			"alerts":     h.alerts.Summarize(),
			"monitoring": h.service.Status(),
		}, nil
	})
	if err != nil {
		internal := errors.InternalError("failed to build dashboard summary", err)
		c.JSON(internal.HTTPStatus, internal)
		return
	}

	c.JSON(http.StatusOK, summary)
}
