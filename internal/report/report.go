package report

import "time"

// Status is the lifecycle state of an execution context or step.
type Status string

const (
	// StatusPending means the context has not started. Contexts blocked by a
	// failed dependency finish the run in this state.
	StatusPending Status = "pending"
	// StatusRunning means steps are executing.
	StatusRunning Status = "running"
	// StatusSucceeded means every non-skipped step exited zero.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means a step exited non-zero.
	StatusFailed Status = "failed"
	// StatusSkipped means the trigger or a guard condition was false.
	StatusSkipped Status = "skipped"
)

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

// StepResult captures the outcome of a single step.
type StepResult struct {
	WorkflowPath string        `json:"workflow_path"`
	WorkflowName string        `json:"workflow_name"`
	JobName      string        `json:"job_name"`
	Context      string        `json:"context"`
	StepName     string        `json:"step_name"`
	StepRun      string        `json:"step_run,omitempty"`
	StepUses     string        `json:"step_uses,omitempty"`
	Status       Status        `json:"status"`
	Duration     time.Duration `json:"-"`
	DurationMS   int64         `json:"duration_ms"`
	Stdout       string        `json:"stdout,omitempty"`
	Stderr       string        `json:"stderr,omitempty"`
	ExitCode     int           `json:"exit_code"`
	DryRun       bool          `json:"dry_run"`
}

// ContextResult captures the outcome of one execution context: a (job,
// matrix assignment) pair.
type ContextResult struct {
	WorkflowPath string            `json:"workflow_path"`
	WorkflowName string            `json:"workflow_name"`
	JobID        string            `json:"job_id"`
	JobName      string            `json:"job_name"`
	Context      string            `json:"context"`
	Matrix       map[string]string `json:"matrix,omitempty"`
	Status       Status            `json:"status"`
	Reason       string            `json:"reason,omitempty"`
	Steps        []StepResult      `json:"steps,omitempty"`
	Duration     time.Duration     `json:"-"`
	DurationMS   int64             `json:"duration_ms"`
}

// ReleaseResult records the release published by a run, when one was.
type ReleaseResult struct {
	Tag        string `json:"tag"`
	Title      string `json:"title"`
	Prerelease bool   `json:"prerelease"`
}

// Summary aggregates pipeline execution results.
type Summary struct {
	TotalWorkflows int            `json:"total_workflows"`
	TotalContexts  int            `json:"total_contexts"`
	TotalSteps     int            `json:"total_steps"`
	Succeeded      int            `json:"succeeded"`
	Failed         int            `json:"failed"`
	Skipped        int            `json:"skipped"`
	Blocked        int            `json:"blocked"`
	Duration       time.Duration  `json:"-"`
	DurationMS     int64          `json:"duration_ms"`
	ExitCode       int            `json:"exit_code"`
	Release        *ReleaseResult `json:"release,omitempty"`
}
