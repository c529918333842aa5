package runner

import (
	"fmt"
	"strings"

	v1 "github.com/karl-ai/corehub/pkg/api/v1"
)

// buildPlan generates the ordered implementation plan for a task. The
// template depends on the task type; every plan ends with a quality-check
// step.
func buildPlan(task *v1.Task) []string {
	criteria := strings.Join(task.Acceptance, ", ")
	if criteria == "" {
		criteria = task.Title
	}

	switch task.Type {
	case v1.TaskTypeDev:
		return []string{
			fmt.Sprintf("Analyze requirements: %s", task.Title),
			fmt.Sprintf("Implement solution for: %s", criteria),
			"Create/update code files",
			"Write tests",
			"Update documentation",
			"Run quality checks",
		}
	case v1.TaskTypeOps:
		return []string{
			fmt.Sprintf("Analyze operational requirements: %s", task.Title),
			fmt.Sprintf("Implement solution for: %s", criteria),
			"Create/update configuration",
			"Write operational tests",
			"Update runbooks",
			"Run quality checks",
		}
	default:
		return []string{
			fmt.Sprintf("Analyze requirements: %s", task.Title),
			fmt.Sprintf("Implement solution for: %s", criteria),
			"Create/update files",
			"Run quality checks",
		}
	}
}

// implementationFiles synthesizes the source paths an implement step touches.
func implementationFiles(task *v1.Task) []string {
	id := strings.ToLower(task.ID)
	switch task.Type {
	case v1.TaskTypeDev:
		return []string{
			fmt.Sprintf("internal/api/routes/%s.go", id),
			fmt.Sprintf("internal/services/%s_service.go", id),
		}
	case v1.TaskTypeOps:
		return []string{
			fmt.Sprintf("scripts/%s.sh", id),
			fmt.Sprintf("configs/%s.yaml", id),
		}
	default:
		return []string{fmt.Sprintf("misc/%s.go", id)}
	}
}

// testFiles synthesizes the test paths a write-tests step touches.
func testFiles(task *v1.Task) []string {
	return []string{fmt.Sprintf("internal/api/routes/%s_test.go", strings.ToLower(task.ID))}
}

// docFiles synthesizes the documentation paths a docs step touches.
func docFiles(task *v1.Task) []string {
	if task.Type == v1.TaskTypeOps {
		return []string{"docs/runbooks.md"}
	}
	return []string{"README.md", "docs/api.md"}
}

// branchName derives the feature branch from the task id and title.
func branchName(task *v1.Task) string {
	slug := strings.ToLower(strings.ReplaceAll(task.Title, " ", "-"))
	return fmt.Sprintf("feat/%s-%s", strings.ToLower(task.ID), slug)
}

// commitMessage derives the commit message listing every touched file.
func commitMessage(task *v1.Task, files []string) string {
	return fmt.Sprintf("feat: %s\n\n- Task ID: %s\n- Files: %s",
		task.Title, task.ID, strings.Join(files, ", "))
}
