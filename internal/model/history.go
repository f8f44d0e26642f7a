package model

import "time"

// RunStatus represents the state of a grading run.
type RunStatus string

const (
	RunPending RunStatus = "pending"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

// ContextBuild records one successful answer-key upload.
type ContextBuild struct {
	ID         int64     `json:"id"`
	SourceFile string    `json:"source_file"`
	Questions  int       `json:"questions"`
	TotalMarks int       `json:"total_marks"`
	BuiltAt    time.Time `json:"built_at"`
}

// GradingRun records one grading invocation and its outcome.
type GradingRun struct {
	ID         int64      `json:"id"`
	SourceFile string     `json:"source_file"`
	Status     RunStatus  `json:"status"`
	Students   int        `json:"students"`
	ReportPath string     `json:"report_path"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
