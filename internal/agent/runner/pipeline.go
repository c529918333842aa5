package runner

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/karl-ai/corehub/internal/agent/quality"
	"github.com/karl-ai/corehub/internal/agent/vcs"
	"github.com/karl-ai/corehub/internal/common/logger"
	v1 "github.com/karl-ai/corehub/pkg/api/v1"
)

// Pipeline executes one task end to end: plan, implement, test, quality
// gates, PR record, status update.
type Pipeline struct {
	source  TaskSource
	vcs     vcs.Sink
	quality quality.Runner
	agent   string
	logger  *logger.Logger
}

// NewPipeline creates the task execution pipeline.
func NewPipeline(source TaskSource, sink vcs.Sink, qualityRunner quality.Runner, agent string, log *logger.Logger) *Pipeline {
	return &Pipeline{
		source:  source,
		vcs:     sink,
		quality: qualityRunner,
		agent:   agent,
		logger:  log,
	}
}

// Execute runs the pipeline over an already-claimed task. On any failure the
// task is moved to blocked before the error is returned; on success it is
// moved to done.
func (p *Pipeline) Execute(ctx context.Context, task *v1.Task) (*v1.ExecutionResult, error) {
	startedAt := time.Now().UTC()
	log := p.logger.WithTaskID(task.ID)
	log.Info("Executing task", zap.String("title", task.Title))

	_ = p.source.LogEvent(ctx, "task_started", task.ID, task.Title)

	result, err := p.execute(ctx, task, startedAt)
	if err != nil {
		log.Error("Task failed", zap.Error(err))
		if _, blockErr := p.source.UpdateStatus(ctx, task.ID, string(v1.TaskStateBlocked)); blockErr != nil {
			log.Error("Failed to mark task blocked", zap.Error(blockErr))
		}
		_ = p.source.LogEvent(ctx, "task_failed", task.ID, err.Error())
		return nil, err
	}

	if _, err := p.source.UpdateStatus(ctx, task.ID, string(v1.TaskStateDone)); err != nil {
		return nil, err
	}
	_ = p.source.LogEvent(ctx, "task_completed", task.ID, "")

	log.Info("Task completed",
		zap.Duration("duration", result.CompletedAt.Sub(result.StartedAt)),
		zap.Bool("quality_passed", result.Quality.Passed))
	return result, nil
}

func (p *Pipeline) execute(ctx context.Context, task *v1.Task, startedAt time.Time) (*v1.ExecutionResult, error) {
	plan := buildPlan(task)

	var steps []v1.StepResult
	var files []string
	for _, step := range plan {
		p.logger.Debug("Executing step", zap.String("step", step))

		switch {
		case strings.Contains(step, "Implement solution"):
			files = append(files, implementationFiles(task)...)
		case strings.Contains(step, "tests"):
			files = append(files, testFiles(task)...)
		case strings.Contains(step, "documentation"), strings.Contains(step, "runbooks"):
			files = append(files, docFiles(task)...)
		}

		steps = append(steps, v1.StepResult{
			Step:        step,
			Status:      "completed",
			CompletedAt: time.Now().UTC(),
		})
	}

	report := quality.Run(ctx, p.quality)
	if !report.Passed {
		p.logger.Warn("Quality gates failed", zap.String("task_id", task.ID))
	}

	pr, err := p.createPR(ctx, task, files)
	if err != nil {
		return nil, err
	}

	return &v1.ExecutionResult{
		TaskID:      task.ID,
		Agent:       p.agent,
		Plan:        plan,
		Steps:       steps,
		Files:       files,
		Quality:     report,
		PR:          pr,
		StartedAt:   startedAt,
		CompletedAt: time.Now().UTC(),
	}, nil
}

func (p *Pipeline) createPR(ctx context.Context, task *v1.Task, files []string) (*v1.PRRecord, error) {
	branch := branchName(task)
	if err := p.vcs.CreateBranch(ctx, branch); err != nil {
		return nil, err
	}

	message := commitMessage(task, files)
	if err := p.vcs.Commit(ctx, message, files); err != nil {
		return nil, err
	}

	return p.vcs.GeneratePR(task.ID, task.Title, branch, message, files)
}
