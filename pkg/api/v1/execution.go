package v1

import "time"

// StepResult records the outcome of one plan step.
type StepResult struct {
	Step        string    `json:"step"`
	Status      string    `json:"status"` // completed or failed
	Detail      string    `json:"detail,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// QualityCheck is the outcome of a single quality gate.
type QualityCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Output string `json:"output,omitempty"`
}

// QualityReport aggregates the quality gates run after implementation.
// Passed is true only when every individual check passed.
type QualityReport struct {
	Checks []QualityCheck `json:"checks"`
	Passed bool           `json:"passed"`
}

// PRRecord describes the pull request artifact produced for a completed task.
type PRRecord struct {
	Branch        string    `json:"branch"`
	CommitMessage string    `json:"commit_message"`
	ArtifactPath  string    `json:"artifact_path"`
	CreatedAt     time.Time `json:"created_at"`
}

// ExecutionResult is the full record of one pipeline run over a task.
type ExecutionResult struct {
	TaskID      string        `json:"task_id"`
	Agent       string        `json:"agent"`
	Plan        []string      `json:"plan"`
	Steps       []StepResult  `json:"steps"`
	Files       []string      `json:"files"`
	Quality     QualityReport `json:"quality"`
	PR          *PRRecord     `json:"pr,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}
