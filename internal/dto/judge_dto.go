package dto

// ExecuteRequest is the payload for ad-hoc code execution against an
// optional stdin, without persisting anything.
type ExecuteRequest struct {
	Code      string `json:"code" validate:"required,min=1"`
	Language  string `json:"language" validate:"required"`
	Input     string `json:"input"`
	TimeLimit int    `json:"time_limit" validate:"omitempty,gte=1,lte=30"`
}

// ExecuteResponse reports the outcome of an ad-hoc execution.
type ExecuteResponse struct {
	Status        string  `json:"status"`
	Output        string  `json:"output"`
	Error         string  `json:"error,omitempty"`
	ExecutionTime float64 `json:"execution_time"`
}

// CaseResultResponse is the per-case diagnostic exposed to API consumers.
type CaseResultResponse struct {
	CaseID         int     `json:"case_id"`
	Status         string  `json:"status"`
	Input          string  `json:"input"`
	ExpectedOutput string  `json:"expected_output"`
	ActualOutput   string  `json:"actual_output"`
	ExecutionTime  float64 `json:"execution_time"`
	Error          string  `json:"error,omitempty"`
}

// JudgeResultResponse is the full judge verdict with per-case diagnostics.
type JudgeResultResponse struct {
	Status        string               `json:"status"`
	PassedCases   int                  `json:"passed_cases"`
	TotalCases    int                  `json:"total_cases"`
	TestResults   []CaseResultResponse `json:"test_results"`
	ExecutionTime float64              `json:"execution_time"`
	ErrorMessage  string               `json:"error_message,omitempty"`
}
