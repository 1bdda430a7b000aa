package models

import "time"

// QuestionStatistics tracks one user's history against one question. Rows
// are upserted: created on first submission, updated thereafter.
// Invariants: AcceptedSubmissions <= TotalSubmissions, BestScore never
// decreases, FirstAcceptedAt is set exactly once.
type QuestionStatistics struct {
	ID                  uint `gorm:"primaryKey" json:"id"`
	UserID              uint `gorm:"not null;uniqueIndex:idx_question_stats_user_question" json:"user_id"`
	QuestionID          uint `gorm:"not null;uniqueIndex:idx_question_stats_user_question" json:"question_id"`
	TotalSubmissions    int  `gorm:"default:0" json:"total_submissions"`
	AcceptedSubmissions int  `gorm:"default:0" json:"accepted_submissions"`
	// BestTime is the lowest execution time among accepted submissions,
	// in seconds. Nil until the first accept.
	BestTime        *float64   `json:"best_time"`
	BestScore       float64    `gorm:"default:0" json:"best_score"`
	FirstAcceptedAt *time.Time `json:"first_accepted_at"`
	LastSubmittedAt time.Time  `json:"last_submitted_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// UserStatistics is the per-user aggregate. It is fully derived from the
// submission table and may be rebuilt destructively at any time.
type UserStatistics struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	UserID              uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	TotalSubmissions    int       `gorm:"default:0" json:"total_submissions"`
	AcceptedSubmissions int       `gorm:"default:0" json:"accepted_submissions"`
	SolvedQuestions     int       `gorm:"default:0" json:"solved_questions"`
	TotalScore          float64   `gorm:"default:0" json:"total_score"`
	AverageScore        float64   `gorm:"default:0" json:"average_score"`
	AcceptanceRate      float64   `gorm:"default:0" json:"acceptance_rate"`
	UpdatedAt           time.Time `json:"updated_at"`
}
