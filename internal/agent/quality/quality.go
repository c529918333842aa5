// Package quality runs the gates a task must pass before its PR record is
// produced: tests, lint, type check and format check.
package quality

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/karl-ai/corehub/internal/common/logger"
	v1 "github.com/karl-ai/corehub/pkg/api/v1"
)

// Runner executes the four quality gates. Each gate reports pass/fail
// independently; Run aggregates them.
type Runner interface {
	RunTests(ctx context.Context) v1.QualityCheck
	RunLint(ctx context.Context) v1.QualityCheck
	RunTypeCheck(ctx context.Context) v1.QualityCheck
	RunFormatCheck(ctx context.Context) v1.QualityCheck
}

// Run executes all gates and aggregates them; the report passes only when
// every gate passed.
func Run(ctx context.Context, r Runner) v1.QualityReport {
	checks := []v1.QualityCheck{
		r.RunTests(ctx),
		r.RunLint(ctx),
		r.RunTypeCheck(ctx),
		r.RunFormatCheck(ctx),
	}
	passed := true
	for _, check := range checks {
		passed = passed && check.Passed
	}
	return v1.QualityReport{Checks: checks, Passed: passed}
}

// CommandRunner runs the gates against a real working tree with the Go
// toolchain.
type CommandRunner struct {
	workDir string
	logger  *logger.Logger
}

// NewCommandRunner creates a runner operating in workDir.
func NewCommandRunner(workDir string, log *logger.Logger) *CommandRunner {
	return &CommandRunner{workDir: workDir, logger: log}
}

func (r *CommandRunner) run(ctx context.Context, name string, cmd string, args ...string) v1.QualityCheck {
	var out bytes.Buffer
	c := exec.CommandContext(ctx, cmd, args...)
	c.Dir = r.workDir
	c.Stdout = &out
	c.Stderr = &out

	err := c.Run()
	check := v1.QualityCheck{
		Name:   name,
		Passed: err == nil,
		Output: strings.TrimSpace(out.String()),
	}
	if err != nil {
		r.logger.Warn("Quality gate failed",
			zap.String("check", name),
			zap.Error(err))
	}
	return check
}

// RunTests runs the package tests.
func (r *CommandRunner) RunTests(ctx context.Context) v1.QualityCheck {
	return r.run(ctx, "tests", "go", "test", "./...")
}

// RunLint vets the tree.
func (r *CommandRunner) RunLint(ctx context.Context) v1.QualityCheck {
	return r.run(ctx, "lint", "go", "vet", "./...")
}

// RunTypeCheck compiles without producing artifacts.
func (r *CommandRunner) RunTypeCheck(ctx context.Context) v1.QualityCheck {
	return r.run(ctx, "type_check", "go", "build", "./...")
}

// RunFormatCheck fails when gofmt would rewrite any file.
func (r *CommandRunner) RunFormatCheck(ctx context.Context) v1.QualityCheck {
	check := r.run(ctx, "format", "gofmt", "-l", ".")
	if check.Passed && check.Output != "" {
		// gofmt exits 0 even when files need formatting.
		check.Passed = false
	}
	return check
}

// SimulatedRunner reports every gate as passed without touching a toolchain.
// Used when the agent runs against a synthetic workspace.
type SimulatedRunner struct{}

func (SimulatedRunner) check(name string) v1.QualityCheck {
	return v1.QualityCheck{Name: name, Passed: true, Output: "simulated"}
}

func (s SimulatedRunner) RunTests(ctx context.Context) v1.QualityCheck {
	return s.check("tests")
}

func (s SimulatedRunner) RunLint(ctx context.Context) v1.QualityCheck {
	return s.check("lint")
}

func (s SimulatedRunner) RunTypeCheck(ctx context.Context) v1.QualityCheck {
	return s.check("type_check")
}

func (s SimulatedRunner) RunFormatCheck(ctx context.Context) v1.QualityCheck {
	return s.check("format")
}
