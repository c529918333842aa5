// Package runner implements the agent poll loop: claim a task from CoreHub,
// execute the pipeline, and back off through a circuit breaker on repeated
// failure.
package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/karl-ai/corehub/internal/common/config"
	"github.com/karl-ai/corehub/internal/common/logger"
	v1 "github.com/karl-ai/corehub/pkg/api/v1"
)

// TaskSource is the hub contract the runner polls against. The HTTP client
// in internal/agent/client implements it.
type TaskSource interface {
	NextTask(ctx context.Context) (*v1.Task, error)
	GetTask(ctx context.Context, taskID string) (*v1.Task, error)
	UpdateStatus(ctx context.Context, taskID, status string) (*v1.Task, error)
	LogEvent(ctx context.Context, eventType, taskID, message string) error
	IsPaused(ctx context.Context) bool
}

// DefaultPausedInterval is the sleep between pause checks while the hub has
// paused agent work.
const DefaultPausedInterval = 60 * time.Second

// Runner drives the poll loop for one agent.
type Runner struct {
	source         TaskSource
	pipeline       *Pipeline
	breaker        *breaker
	pollInterval   time.Duration
	pausedInterval time.Duration
	logger         *logger.Logger
}

// New creates a runner from the agent configuration.
func New(source TaskSource, pipeline *Pipeline, cfg config.AgentConfig, log *logger.Logger) *Runner {
	pollInterval := cfg.PollIntervalDuration()
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	pausedInterval := cfg.PausedIntervalDuration()
	if pausedInterval <= 0 {
		pausedInterval = DefaultPausedInterval
	}

	return &Runner{
		source:   source,
		pipeline: pipeline,
		breaker: newBreaker(
			cfg.FailureThreshold,
			cfg.ResetCooldownDuration(),
			cfg.MaxBackoffDuration(),
		),
		pollInterval:   pollInterval,
		pausedInterval: pausedInterval,
		logger:         log,
	}
}

// RunOnce claims and executes the next ready task. It returns (nil, nil)
// when the hub is paused (without fetching) or when no task is ready.
func (r *Runner) RunOnce(ctx context.Context) (*v1.ExecutionResult, error) {
	if r.source.IsPaused(ctx) {
		r.logger.Debug("Hub is paused, skipping fetch")
		return nil, nil
	}

	task, err := r.source.NextTask(ctx)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}

	return r.pipeline.Execute(ctx, task)
}

// RunTask executes one specific task by ID, returning (nil, nil) when the
// hub does not know it.
func (r *Runner) RunTask(ctx context.Context, taskID string) (*v1.ExecutionResult, error) {
	task, err := r.source.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		r.logger.Warn("Task not found", zap.String("task_id", taskID))
		return nil, nil
	}

	return r.pipeline.Execute(ctx, task)
}

// RunLoop polls until the context is cancelled. An open circuit sleeps the
// reset cooldown before closing; failures below the threshold back off
// exponentially; reaching the threshold opens the circuit without sleeping.
func (r *Runner) RunLoop(ctx context.Context) error {
	r.logger.Info("Poll loop started",
		zap.Duration("poll_interval", r.pollInterval),
		zap.Int("failure_threshold", r.breaker.threshold))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if r.breaker.open {
			r.logger.Warn("Circuit open, waiting before reset",
				zap.Duration("cooldown", r.breaker.resetCooldown))
			if err := sleep(ctx, r.breaker.resetCooldown); err != nil {
				return err
			}
			r.breaker.recordSuccess()
			r.logger.Info("Circuit closed")
			continue
		}

		if r.source.IsPaused(ctx) {
			r.logger.Debug("Hub is paused")
			if err := sleep(ctx, r.pausedInterval); err != nil {
				return err
			}
			continue
		}

		if _, err := r.RunOnce(ctx); err != nil {
			if opened := r.breaker.recordFailure(time.Now()); opened {
				r.logger.Error("Failure threshold reached, opening circuit",
					zap.Int("failures", r.breaker.failures),
					zap.Error(err))
				continue
			}
			backoff := r.breaker.backoff()
			r.logger.Warn("Poll failed, backing off",
				zap.Int("failures", r.breaker.failures),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
			continue
		}

		r.breaker.recordSuccess()
		if err := sleep(ctx, r.pollInterval); err != nil {
			return err
		}
	}
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
