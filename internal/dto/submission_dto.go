package dto

import (
	"encoding/json"
	"time"

	"github.com/edualab/quizjudge-api/internal/models"
)

// SubmissionCreateRequest is the payload for judging and recording a
// submission.
type SubmissionCreateRequest struct {
	QuestionID uint   `json:"question_id" validate:"required,gt=0"`
	Code       string `json:"code" validate:"required,min=1"`
	Language   string `json:"language" validate:"required"`
	// TimeLimit optionally overrides the question's limit, in seconds.
	TimeLimit int `json:"time_limit" validate:"omitempty,gte=1,lte=30"`
}

// SubmissionResponse represents a judged submission to API consumers.
type SubmissionResponse struct {
	ID            uint                 `json:"id"`
	UserID        uint                 `json:"user_id"`
	QuestionID    uint                 `json:"question_id"`
	Code          string               `json:"code,omitempty"`
	Language      string               `json:"language"`
	Status        string               `json:"status"`
	PassedCases   int                  `json:"passed_cases"`
	TotalCases    int                  `json:"total_cases"`
	ExecutionTime float64              `json:"execution_time"`
	Score         float64              `json:"score"`
	ErrorMessage  string               `json:"error_message,omitempty"`
	TestResults   []CaseResultResponse `json:"test_results,omitempty"`
	SubmittedAt   time.Time            `json:"submitted_at"`
}

// SubmissionListResponse wraps a paginated submission listing.
type SubmissionListResponse struct {
	Submissions []SubmissionResponse `json:"submissions"`
	Total       int64                `json:"total"`
	Page        int                  `json:"page"`
	PerPage     int                  `json:"per_page"`
}

// NewSubmissionResponse builds a response DTO from a model. Source code and
// per-case diagnostics are included only for viewers allowed to see them.
func NewSubmissionResponse(submission models.CodeSubmission, includeDetails bool) SubmissionResponse {
	response := SubmissionResponse{
		ID:            submission.ID,
		UserID:        submission.UserID,
		QuestionID:    submission.QuestionID,
		Language:      submission.Language,
		Status:        submission.Status,
		PassedCases:   submission.PassedCases,
		TotalCases:    submission.TotalCases,
		ExecutionTime: submission.ExecutionTime,
		Score:         submission.Score,
		ErrorMessage:  submission.ErrorMessage,
		SubmittedAt:   submission.SubmittedAt,
	}

	if includeDetails {
		response.Code = submission.Code
		response.TestResults = decodeCaseResults(submission.CaseResults)
	}

	return response
}

func decodeCaseResults(raw []byte) []CaseResultResponse {
	if len(raw) == 0 {
		return nil
	}

	var cases []models.CaseResult
	if err := json.Unmarshal(raw, &cases); err != nil {
		return nil
	}

	results := make([]CaseResultResponse, 0, len(cases))
	for _, c := range cases {
		results = append(results, NewCaseResultResponse(c))
	}
	return results
}

// NewCaseResultResponse converts a per-case diagnostic into a DTO.
func NewCaseResultResponse(c models.CaseResult) CaseResultResponse {
	return CaseResultResponse{
		CaseID:         c.CaseID,
		Status:         c.Status,
		Input:          c.Input,
		ExpectedOutput: c.ExpectedOutput,
		ActualOutput:   c.ActualOutput,
		ExecutionTime:  c.ExecutionTime,
		Error:          c.Error,
	}
}
