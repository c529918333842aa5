package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/karl-ai/corehub/internal/alerts"
	"github.com/karl-ai/corehub/internal/common/logger"
	"github.com/karl-ai/corehub/internal/metrics"
)

// Service runs five concurrent loops on one interval: four metric
// collection loops (one per family) plus the alert check loop. A failing
// iteration is logged and the loop keeps going.
type Service struct {
	collector *metrics.Collector
	alerts    *alerts.Manager
	interval  time.Duration
	logger    *logger.Logger

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// Status is a snapshot of the monitoring service state.
type Status struct {
	Running       bool    `json:"running"`
	Loops         int     `json:"loops"`
	IntervalSec   float64 `json:"interval_sec"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// NewService creates the monitoring service.
func NewService(collector *metrics.Collector, alertMgr *alerts.Manager, interval time.Duration, log *logger.Logger) *Service {
	return &Service{
		collector: collector,
		alerts:    alertMgr,
		interval:  interval,
		logger:    log,
	}
}

// Start launches the collection and alert loops. Calling Start on a running
// service is an error.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("monitoring service already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.stopCh = make(chan struct{})

	collectors := map[string]func(context.Context) error{
		"system": func(ctx context.Context) error {
			_, err := s.collector.CollectSystem(ctx)
			return err
		},
		"application": func(ctx context.Context) error {
			_, err := s.collector.CollectApplication(ctx)
			return err
		},
		"agent": func(ctx context.Context) error {
			_, err := s.collector.CollectAgent(ctx)
			return err
		},
		"business": func(ctx context.Context) error {
			_, err := s.collector.CollectBusiness(ctx)
			return err
		},
	}
	for name, collect := range collectors {
		s.wg.Add(1)
		go s.runLoop(ctx, name, collect)
	}

	s.wg.Add(1)
	go s.runLoop(ctx, "alert-check", s.checkAlerts)

	s.logger.Info("Monitoring service started",
		zap.Duration("interval", s.interval))
	return nil
}

// runLoop runs fn on every tick until the service stops. Errors and panics
// are contained within the iteration.
func (s *Service) runLoop(ctx context.Context, name string, fn func(context.Context) error) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx, name, fn)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) runOnce(ctx context.Context, name string, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Monitoring loop panicked",
				zap.String("loop", name),
				zap.Any("panic", r))
		}
	}()

	if err := fn(ctx); err != nil {
		s.logger.Error("Monitoring loop iteration failed",
			zap.String("loop", name),
			zap.Error(err))
	}
}

// checkAlerts evaluates the latest samples and records an alert for every
// breach through the alert manager.
func (s *Service) checkAlerts(ctx context.Context) error {
	for _, cand := range s.collector.CheckAlerts() {
		if _, err := s.alerts.CreateFromCandidate(ctx, cand); err != nil {
			s.logger.Error("Failed to record threshold alert",
				zap.String("type", cand.Type),
				zap.Error(err))
		}
	}
	return nil
}

// Stop halts the loops and waits for them to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Monitoring service stopped")
}

// Status reports whether the service is running and for how long.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:     s.running,
		Loops:       5,
		IntervalSec: s.interval.Seconds(),
	}
	if s.running {
		st.UptimeSeconds = time.Since(s.startedAt).Seconds()
	}
	return st
}
