package model

import "time"

// Status is the submission lifecycle state.
// Pending -> Running -> {Completed, Failed}; Running -> Flagged (admin action).
// Completed, Failed and Flagged are terminal.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
	StatusFlagged   Status = "Flagged"
)

// Terminal reports whether no further pipeline write may change the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusFlagged
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusFlagged:
		return true
	}
	return false
}

// Submission artifact types.
const (
	TypeDocker  = "docker"
	TypeGitHub  = "github"
	TypeArchive = "archive"
)

// TaskResult is one per-task verdict inside a feedback report.
type TaskResult struct {
	Task   string `json:"task"`
	Status string `json:"status"` // "Pass" or "Fail"
}

// Feedback is the structured evaluation report. The JSON field names are part
// of the wire contract consumed by report rendering and must round-trip
// losslessly through storage.
type Feedback struct {
	LLMJudgeSummary string       `json:"llm_judge_summary"`
	Trace           []string     `json:"trace"`
	ErrorCategories []string     `json:"error_categories"`
	PerTaskResults  []TaskResult `json:"per_task_results"`
}

// Submission is one evaluation attempt of a named agent against a benchmark.
type Submission struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	BenchmarkID    int64     `json:"benchmark_id"`
	ParentID       *int64    `json:"parent_id,omitempty"`
	Version        int       `json:"version"`
	AgentName      string    `json:"agent_name"`
	SubmissionType string    `json:"submission_type"`
	SourceURL      string    `json:"source_url"`
	Status         Status    `json:"status"`
	Score          *float64  `json:"score"`
	Cost           *float64  `json:"cost"`
	Logs           string    `json:"logs"`
	Feedback       *Feedback `json:"feedback,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
