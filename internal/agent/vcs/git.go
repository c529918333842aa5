// Package vcs is the version-control sink for the agent pipeline: branch
// creation, commits and the generated PR artifact.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/karl-ai/corehub/internal/common/logger"
	v1 "github.com/karl-ai/corehub/pkg/api/v1"
)

// Sink is the version-control contract the pipeline depends on.
type Sink interface {
	CreateBranch(ctx context.Context, name string) error
	Commit(ctx context.Context, message string, files []string) error
	GeneratePR(taskID, title, branch, commitMessage string, files []string) (*v1.PRRecord, error)
}

// Git is an exec-based Sink over a local repository. Commits stage only
// files that exist on disk; missing paths are logged and skipped.
type Git struct {
	repoPath   string
	reportsDir string
	logger     *logger.Logger
}

// NewGit creates a Git sink rooted at repoPath. PR artifacts land under
// reportsDir/prs.
func NewGit(repoPath, reportsDir string, log *logger.Logger) (*Git, error) {
	prDir := filepath.Join(reportsDir, "prs")
	if err := os.MkdirAll(prDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pr directory: %w", err)
	}
	return &Git{repoPath: repoPath, reportsDir: reportsDir, logger: log}, nil
}

func (g *Git) git(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.repoPath
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(out.String()))
	}
	return out.String(), nil
}

// CreateBranch checks out a new branch, reusing it when it already exists.
func (g *Git) CreateBranch(ctx context.Context, name string) error {
	existing, err := g.git(ctx, "branch", "--list", name)
	if err != nil {
		return err
	}
	if strings.TrimSpace(existing) != "" {
		g.logger.Info("Branch already exists", zap.String("branch", name))
		_, err = g.git(ctx, "checkout", name)
		return err
	}

	if _, err := g.git(ctx, "checkout", "-b", name); err != nil {
		return err
	}
	g.logger.Info("Created branch", zap.String("branch", name))
	return nil
}

// Commit stages the given files and commits them.
func (g *Git) Commit(ctx context.Context, message string, files []string) error {
	staged := 0
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(g.repoPath, file)); err != nil {
			g.logger.Warn("Skipping missing file", zap.String("file", file))
			continue
		}
		if _, err := g.git(ctx, "add", file); err != nil {
			return err
		}
		staged++
	}
	if staged == 0 {
		g.logger.Warn("Nothing to commit", zap.Int("requested", len(files)))
		return nil
	}

	if _, err := g.git(ctx, "commit", "-m", message); err != nil {
		return err
	}
	g.logger.Info("Created commit", zap.Int("files", staged))
	return nil
}

// GeneratePR writes the PR description artifact and returns its record.
func (g *Git) GeneratePR(taskID, title, branch, commitMessage string, files []string) (*v1.PRRecord, error) {
	path := filepath.Join(g.reportsDir, "prs", fmt.Sprintf("PR-%s.md", taskID))
	now := time.Now().UTC()

	content := prContent(taskID, title, branch, commitMessage, files, now)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write pr artifact: %w", err)
	}

	g.logger.Info("Generated PR artifact",
		zap.String("task_id", taskID),
		zap.String("path", path))
	return &v1.PRRecord{
		Branch:        branch,
		CommitMessage: commitMessage,
		ArtifactPath:  path,
		CreatedAt:     now,
	}, nil
}

func prContent(taskID, title, branch, commitMessage string, files []string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# PR: %s - %s\n\n", taskID, title)
	fmt.Fprintf(&b, "## Summary\nImplements task %s from the CoreHub board.\n\n", taskID)

	b.WriteString("## Changed files\n")
	for _, file := range files {
		fmt.Fprintf(&b, "- %s\n", file)
	}

	fmt.Fprintf(&b, "\n## Commit\n```\n%s\n```\n\n", commitMessage)

	b.WriteString("## Checklist\n")
	b.WriteString("- [ ] Unit tests passing\n")
	b.WriteString("- [ ] Lint clean\n")
	b.WriteString("- [ ] Docs updated\n\n")

	fmt.Fprintf(&b, "---\nTask: %s | Branch: %s | Files: %d | Created: %s\n",
		taskID, branch, len(files), now.Format("2006-01-02 15:04:05"))
	return b.String()
}
