package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// TestCase is one (input, expected output) pair used to evaluate a
// submission. Order within a question's case list is stable and defines the
// 1-based case numbering used in diagnostics.
type TestCase struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	Label  string `json:"label,omitempty"`
}

// QuestionCases splits a question's cases into visible ones (shown to the
// learner) and hidden ones (withheld until judging).
type QuestionCases struct {
	TestCases   []TestCase `json:"test_cases"`
	HiddenCases []TestCase `json:"hidden_cases"`
}

// Combined returns visible then hidden cases in stable order.
func (c QuestionCases) Combined() []TestCase {
	combined := make([]TestCase, 0, len(c.TestCases)+len(c.HiddenCases))
	combined = append(combined, c.TestCases...)
	combined = append(combined, c.HiddenCases...)
	return combined
}

// CodingQuestion is a programming exercise owned by the question catalog.
// The judging core reads it for its limits and test cases only.
type CodingQuestion struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Language    string `gorm:"size:32;not null" json:"language"`
	// TimeLimitSec is the wall-clock execution budget per test case.
	TimeLimitSec int `gorm:"default:5" json:"time_limit_sec"`
	// MemoryLimitMB is recorded but not enforced by the executor.
	MemoryLimitMB int            `gorm:"default:128" json:"memory_limit_mb"`
	Cases         datatypes.JSON `gorm:"type:json" json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ParsedCases decodes the stored case collection. Missing or malformed JSON
// yields empty case sets, which judging treats as an error condition rather
// than a vacuous accept.
func (q CodingQuestion) ParsedCases() QuestionCases {
	var cases QuestionCases
	if len(q.Cases) == 0 {
		return cases
	}
	if err := json.Unmarshal(q.Cases, &cases); err != nil {
		return QuestionCases{}
	}
	return cases
}
