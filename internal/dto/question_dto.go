package dto

import (
	"time"

	"github.com/edualab/quizjudge-api/internal/models"
)

// TestCasePayload carries one test case in question create/update requests
// and catalog responses.
type TestCasePayload struct {
	Input  string `json:"input"`
	Output string `json:"output" validate:"required"`
	Label  string `json:"label,omitempty"`
}

// QuestionCreateRequest is the admin payload for creating a question.
type QuestionCreateRequest struct {
	Title         string            `json:"title" validate:"required,max=255"`
	Description   string            `json:"description"`
	Language      string            `json:"language" validate:"required"`
	TimeLimitSec  int               `json:"time_limit_sec" validate:"omitempty,gte=1,lte=30"`
	MemoryLimitMB int               `json:"memory_limit_mb" validate:"omitempty,gte=64,lte=512"`
	TestCases     []TestCasePayload `json:"test_cases" validate:"dive"`
	HiddenCases   []TestCasePayload `json:"hidden_cases" validate:"dive"`
}

// QuestionResponse represents a catalog question. Hidden cases are exposed
// only to admins.
type QuestionResponse struct {
	ID            uint              `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Language      string            `json:"language"`
	TimeLimitSec  int               `json:"time_limit_sec"`
	MemoryLimitMB int               `json:"memory_limit_mb"`
	TestCases     []TestCasePayload `json:"test_cases"`
	HiddenCases   []TestCasePayload `json:"hidden_cases,omitempty"`
	HiddenCount   int               `json:"hidden_count"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// QuestionListResponse wraps a paginated question listing.
type QuestionListResponse struct {
	Questions []QuestionResponse `json:"questions"`
	Total     int64              `json:"total"`
	Page      int                `json:"page"`
	PerPage   int                `json:"per_page"`
}

// NewQuestionResponse builds a response DTO from a model.
func NewQuestionResponse(question models.CodingQuestion, includeHidden bool) QuestionResponse {
	cases := question.ParsedCases()

	response := QuestionResponse{
		ID:            question.ID,
		Title:         question.Title,
		Description:   question.Description,
		Language:      question.Language,
		TimeLimitSec:  question.TimeLimitSec,
		MemoryLimitMB: question.MemoryLimitMB,
		TestCases:     toCasePayloads(cases.TestCases),
		HiddenCount:   len(cases.HiddenCases),
		CreatedAt:     question.CreatedAt,
		UpdatedAt:     question.UpdatedAt,
	}

	if includeHidden {
		response.HiddenCases = toCasePayloads(cases.HiddenCases)
	}

	return response
}

func toCasePayloads(cases []models.TestCase) []TestCasePayload {
	payloads := make([]TestCasePayload, 0, len(cases))
	for _, c := range cases {
		payloads = append(payloads, TestCasePayload{Input: c.Input, Output: c.Output, Label: c.Label})
	}
	return payloads
}

// ToModelCases converts request payloads into the stored case collection.
func ToModelCases(visible, hidden []TestCasePayload) models.QuestionCases {
	return models.QuestionCases{
		TestCases:   toModelCases(visible),
		HiddenCases: toModelCases(hidden),
	}
}

func toModelCases(payloads []TestCasePayload) []models.TestCase {
	cases := make([]models.TestCase, 0, len(payloads))
	for _, p := range payloads {
		cases = append(cases, models.TestCase{Input: p.Input, Output: p.Output, Label: p.Label})
	}
	return cases
}
