// Package monitor runs the background collection loops and exposes the
// monitoring HTTP endpoints.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/karl-ai/corehub/internal/cache"
	"github.com/karl-ai/corehub/internal/metrics"
	"github.com/karl-ai/corehub/internal/task/service"
)

// AppStats accumulates HTTP request counters between collections.
type AppStats struct {
	mu       sync.Mutex
	requests uint64
	errors   uint64
	totalDur time.Duration
}

// NewAppStats creates an empty request recorder.
func NewAppStats() *AppStats {
	return &AppStats{}
}

// Record adds one finished request.
func (s *AppStats) Record(duration time.Duration, isError bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	s.totalDur += duration
	if isError {
		s.errors++
	}
}

// snapshot returns counters since the previous snapshot and resets them,
// so each sample covers one collection window.
func (s *AppStats) snapshot() (requests, errs uint64, avg time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	requests, errs = s.requests, s.errors
	if requests > 0 {
		avg = s.totalDur / time.Duration(requests)
	}
	s.requests, s.errors, s.totalDur = 0, 0, 0
	return
}

// Instrument is gin middleware feeding the application metrics.
func Instrument(stats *AppStats) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		stats.Record(time.Since(start), c.Writer.Status() >= 500)
	}
}

// ApplicationSource builds the application-family metrics source from the
// request recorder and the shared cache.
func ApplicationSource(stats *AppStats, c *cache.Cache) metrics.Source {
	return metrics.SourceFunc(func(ctx context.Context) (map[string]float64, error) {
		requests, errs, avg := stats.snapshot()
		errorRate := 0.0
		if requests > 0 {
			errorRate = float64(errs) / float64(requests) * 100
		}
		return map[string]float64{
			"requests_total":   float64(requests),
			"error_rate":       errorRate,
			"avg_response_sec": avg.Seconds(),
			"cache_hit_ratio":  c.Stats().HitRatio,
		}, nil
	})
}

// AgentSource builds the agent-family metrics source from the task service.
func AgentSource(svc *service.Service) metrics.Source {
	return metrics.SourceFunc(func(ctx context.Context) (map[string]float64, error) {
		stats, err := svc.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]float64{
			"tasks_in_progress": float64(stats.InProgress),
			"tasks_blocked":     float64(stats.Blocked),
			"queue_length":      float64(svc.QueueLength()),
		}, nil
	})
}

// BusinessSource builds the business-family metrics source from task counts.
func BusinessSource(svc *service.Service) metrics.Source {
	return metrics.SourceFunc(func(ctx context.Context) (map[string]float64, error) {
		stats, err := svc.Stats(ctx)
		if err != nil {
			return nil, err
		}
		completion := 0.0
		if stats.Total > 0 {
			completion = float64(stats.Done) / float64(stats.Total) * 100
		}
		return map[string]float64{
			"tasks_total":     float64(stats.Total),
			"tasks_todo":      float64(stats.Todo),
			"tasks_done":      float64(stats.Done),
			"completion_rate": completion,
		}, nil
	})
}
