package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &Logger{zap: zap.New(core)}, logs
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger(LoggingConfig{Level: "debug", Format: "json", OutputPath: "stdout"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if log.Zap() == nil {
		t.Fatal("underlying zap logger is nil")
	}

	// Unknown levels fall back to info rather than failing.
	if _, err := NewLogger(LoggingConfig{Level: "shouting"}); err != nil {
		t.Errorf("NewLogger with bad level: %v", err)
	}
}

func TestWithFieldsScopesLogger(t *testing.T) {
	log, logs := observed(zapcore.InfoLevel)

	scoped := log.WithFields(zap.String("component", "cache"))
	scoped.Info("cleanup complete", zap.Int("removed", 3))
	log.Info("plain entry")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["component"] != "cache" {
		t.Errorf("component = %v, want cache", fields["component"])
	}
	if _, ok := entries[1].ContextMap()["component"]; ok {
		t.Error("base logger picked up the scoped field")
	}
}

func TestTaskAndAgentScopedLoggers(t *testing.T) {
	log, logs := observed(zapcore.InfoLevel)

	log.WithAgentID("devagent").WithTaskID("task-1").Info("claimed task")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["agent_id"] != "devagent" {
		t.Errorf("agent_id = %v, want devagent", fields["agent_id"])
	}
	if fields["task_id"] != "task-1" {
		t.Errorf("task_id = %v, want task-1", fields["task_id"])
	}
}

func TestDetectLogFormat(t *testing.T) {
	t.Setenv("KUBERNETES_SERVICE_HOST", "")
	t.Setenv("KARL_ENV", "production")
	if got := detectLogFormat(); got != "json" {
		t.Errorf("format = %q in production, want json", got)
	}

	t.Setenv("KARL_ENV", "dev")
	if got := detectLogFormat(); got != "text" {
		t.Errorf("format = %q in dev, want text", got)
	}
}
