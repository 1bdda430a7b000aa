package dto

import (
	"time"

	"github.com/edualab/quizjudge-api/internal/models"
)

// QuestionStatsResponse summarises a user's history on one question.
type QuestionStatsResponse struct {
	QuestionID          uint       `json:"question_id"`
	TotalSubmissions    int        `json:"total_submissions"`
	AcceptedSubmissions int        `json:"accepted_submissions"`
	BestScore           float64    `json:"best_score"`
	BestTime            *float64   `json:"best_time,omitempty"`
	FirstAcceptedAt     *time.Time `json:"first_accepted_at,omitempty"`
	LastSubmittedAt     time.Time  `json:"last_submitted_at"`
}

// UserStatsResponse is the aggregate submission profile for one user.
type UserStatsResponse struct {
	UserID              uint      `json:"user_id"`
	TotalSubmissions    int       `json:"total_submissions"`
	AcceptedSubmissions int       `json:"accepted_submissions"`
	SolvedQuestions     int       `json:"solved_questions"`
	TotalScore          float64   `json:"total_score"`
	AverageScore        float64   `json:"average_score"`
	AcceptanceRate      float64   `json:"acceptance_rate"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// NewQuestionStatsResponse builds the DTO from a statistics row.
func NewQuestionStatsResponse(stats models.QuestionStatistics) QuestionStatsResponse {
	return QuestionStatsResponse{
		QuestionID:          stats.QuestionID,
		TotalSubmissions:    stats.TotalSubmissions,
		AcceptedSubmissions: stats.AcceptedSubmissions,
		BestScore:           stats.BestScore,
		BestTime:            stats.BestTime,
		FirstAcceptedAt:     stats.FirstAcceptedAt,
		LastSubmittedAt:     stats.LastSubmittedAt,
	}
}

// NewUserStatsResponse builds the DTO from an aggregate row.
func NewUserStatsResponse(stats models.UserStatistics) UserStatsResponse {
	return UserStatsResponse{
		UserID:              stats.UserID,
		TotalSubmissions:    stats.TotalSubmissions,
		AcceptedSubmissions: stats.AcceptedSubmissions,
		SolvedQuestions:     stats.SolvedQuestions,
		TotalScore:          stats.TotalScore,
		AverageScore:        stats.AverageScore,
		AcceptanceRate:      stats.AcceptanceRate,
		UpdatedAt:           stats.UpdatedAt,
	}
}
