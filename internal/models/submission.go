package models

import (
	"time"

	"gorm.io/datatypes"
)

// Verdict values a judged submission can carry.
const (
	VerdictAccepted          = "accepted"
	VerdictWrongAnswer       = "wrong_answer"
	VerdictTimeLimitExceeded = "time_limit_exceeded"
	VerdictRuntimeError      = "runtime_error"
	VerdictCompilationError  = "compilation_error"
)

// Per-case diagnostic statuses.
const (
	CaseStatusPassed = "passed"
	CaseStatusFailed = "failed"
)

// CaseResult is the per-case diagnostic copied out of an execution result
// and persisted alongside the submission.
type CaseResult struct {
	CaseID         int     `json:"case_id"`
	Status         string  `json:"status"`
	Input          string  `json:"input"`
	ExpectedOutput string  `json:"expected_output"`
	ActualOutput   string  `json:"actual_output"`
	ExecutionTime  float64 `json:"execution_time"`
	Error          string  `json:"error,omitempty"`
}

// CodeSubmission is one judged submission. Rows are append-only: a
// resubmission is a new row, never an update.
type CodeSubmission struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UserID      uint   `gorm:"not null;index" json:"user_id"`
	QuestionID  uint   `gorm:"not null;index" json:"question_id"`
	Code        string `gorm:"type:text;not null" json:"code"`
	Language    string `gorm:"size:32;not null" json:"language"`
	Status      string `gorm:"size:32;not null" json:"status"`
	PassedCases int    `gorm:"default:0" json:"passed_cases"`
	TotalCases  int    `gorm:"default:0" json:"total_cases"`
	// ExecutionTime is the summed wall-clock time across cases, in seconds.
	ExecutionTime float64        `gorm:"default:0" json:"execution_time"`
	Score         float64        `gorm:"default:0" json:"score"`
	ErrorMessage  string         `gorm:"type:text" json:"error_message"`
	CaseResults   datatypes.JSON `gorm:"type:json" json:"-"`
	SubmittedAt   time.Time      `gorm:"autoCreateTime" json:"submitted_at"`
}

// IsAccepted reports whether the submission's verdict is accepted.
func (s CodeSubmission) IsAccepted() bool {
	return s.Status == VerdictAccepted
}
