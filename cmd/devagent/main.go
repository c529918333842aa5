package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/karl-ai/corehub/internal/agent/client"
	"github.com/karl-ai/corehub/internal/agent/quality"
	"github.com/karl-ai/corehub/internal/agent/runner"
	"github.com/karl-ai/corehub/internal/agent/vcs"
	"github.com/karl-ai/corehub/internal/common/config"
	"github.com/karl-ai/corehub/internal/common/logger"
)

func main() {
	taskID := flag.String("task", "", "execute a single task by ID and exit")
	once := flag.Bool("once", false, "claim and execute at most one task, then exit")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("Starting dev agent...",
		zap.String("agent", cfg.Agent.Name),
		zap.String("hub", cfg.Agent.HubURL))

	// 3. Create context cancelled by SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("Shutdown signal received")
		cancel()
	}()

	// 4. Create the hub client
	agentLog := log.WithAgentID(cfg.Agent.Name)
	hub := client.New(cfg.Agent.HubURL, cfg.Agent.Name,
		client.PauseFailMode(cfg.Agent.PauseFailMode), agentLog)

	// 5. Create the VCS sink
	git, err := vcs.NewGit(cfg.Agent.WorkDir, cfg.Agent.ReportsDir, log)
	if err != nil {
		log.Fatal("Failed to initialize git workspace", zap.Error(err))
	}

	// 6. Pick the quality gate
	var qualityRunner quality.Runner
	if cfg.Agent.SimulateQuality {
		qualityRunner = quality.SimulatedRunner{}
	} else {
		qualityRunner = quality.NewCommandRunner(cfg.Agent.WorkDir, log)
	}

	// 7. Assemble the pipeline and runner
	pipeline := runner.NewPipeline(hub, git, qualityRunner, cfg.Agent.Name, agentLog)
	r := runner.New(hub, pipeline, cfg.Agent, agentLog)

	// 8. Run a single task or the poll loop
	if *taskID != "" {
		result, err := r.RunTask(ctx, *taskID)
		if err != nil {
			log.Fatal("Task execution failed", zap.String("task_id", *taskID), zap.Error(err))
		}
		if result == nil {
			log.Warn("Task not found", zap.String("task_id", *taskID))
			os.Exit(1)
		}
		log.Info("Task completed",
			zap.String("task_id", result.TaskID),
			zap.Int("files", len(result.Files)))
		return
	}

	if *once {
		result, err := r.RunOnce(ctx)
		if err != nil {
			log.Fatal("Task execution failed", zap.Error(err))
		}
		if result == nil {
			log.Info("No task available")
			return
		}
		log.Info("Task completed",
			zap.String("task_id", result.TaskID),
			zap.Int("files", len(result.Files)))
		return
	}

	if err := r.RunLoop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("Poll loop failed", zap.Error(err))
	}

	log.Info("Dev agent stopped")
}
