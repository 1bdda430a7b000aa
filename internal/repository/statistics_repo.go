package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edualab/quizjudge-api/internal/models"
)

// StatisticsRepository exposes persistence helpers for per-(user, question)
// and per-user aggregate statistics rows.
type StatisticsRepository interface {
	WithTx(tx *gorm.DB) StatisticsRepository
	// GetQuestionStatsLocked fetches the per-(user, question) row under a
	// row-level lock so concurrent read-modify-write sequences serialise.
	GetQuestionStatsLocked(ctx context.Context, userID, questionID uint) (models.QuestionStatistics, error)
	GetQuestionStats(ctx context.Context, userID, questionID uint) (models.QuestionStatistics, error)
	SaveQuestionStats(ctx context.Context, stats *models.QuestionStatistics) error
	GetUserStats(ctx context.Context, userID uint) (models.UserStatistics, error)
	UpsertUserStats(ctx context.Context, stats *models.UserStatistics) error
}

// NewStatisticsRepository constructs a statistics repository.
func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

type statisticsRepository struct {
	db *gorm.DB
}

func (r *statisticsRepository) WithTx(tx *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: tx}
}

func (r *statisticsRepository) GetQuestionStatsLocked(ctx context.Context, userID, questionID uint) (models.QuestionStatistics, error) {
	var stats models.QuestionStatistics
	db := r.db.WithContext(ctx)
	// sqlite (used in tests) does not support SELECT ... FOR UPDATE; its
	// single-writer model serialises updates on its own.
	if r.db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := db.Where("user_id = ? AND question_id = ?", userID, questionID).First(&stats).Error
	if err != nil {
		return models.QuestionStatistics{}, err
	}
	return stats, nil
}

func (r *statisticsRepository) GetQuestionStats(ctx context.Context, userID, questionID uint) (models.QuestionStatistics, error) {
	var stats models.QuestionStatistics
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND question_id = ?", userID, questionID).
		First(&stats).Error
	if err != nil {
		return models.QuestionStatistics{}, err
	}
	return stats, nil
}

func (r *statisticsRepository) SaveQuestionStats(ctx context.Context, stats *models.QuestionStatistics) error {
	return r.db.WithContext(ctx).Save(stats).Error
}

func (r *statisticsRepository) GetUserStats(ctx context.Context, userID uint) (models.UserStatistics, error) {
	var stats models.UserStatistics
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&stats).Error; err != nil {
		return models.UserStatistics{}, err
	}
	return stats, nil
}

// UpsertUserStats replaces the derived per-user aggregate row. The row is a
// cache over the submission table and is always written whole.
func (r *statisticsRepository) UpsertUserStats(ctx context.Context, stats *models.UserStatistics) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_submissions", "accepted_submissions", "solved_questions",
			"total_score", "average_score", "acceptance_rate", "updated_at",
		}),
	}).Create(stats).Error
}
