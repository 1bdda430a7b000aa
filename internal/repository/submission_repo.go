package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/edualab/quizjudge-api/internal/models"
)

// SubmissionQuery defines filters and pagination for submission listings.
type SubmissionQuery struct {
	UserID     uint
	QuestionID uint
	Status     string
	Offset     int
	Limit      int
}

// UserTotals carries the aggregate counters recomputed from the submission
// table for one user.
type UserTotals struct {
	TotalSubmissions    int
	AcceptedSubmissions int
	SolvedQuestions     int
	TotalScore          float64
}

// SubmissionRepository exposes persistence helpers for code submissions.
// Submission rows are append-only; there is deliberately no update method.
type SubmissionRepository interface {
	WithTx(tx *gorm.DB) SubmissionRepository
	Create(ctx context.Context, submission *models.CodeSubmission) error
	GetByID(ctx context.Context, id uint) (models.CodeSubmission, error)
	List(ctx context.Context, query SubmissionQuery) ([]models.CodeSubmission, int64, error)
	FirstAccepted(ctx context.Context, userID, questionID uint) (models.CodeSubmission, error)
	UserTotals(ctx context.Context, userID uint) (UserTotals, error)
}

// NewSubmissionRepository constructs a submission repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

type submissionRepository struct {
	db *gorm.DB
}

func (r *submissionRepository) WithTx(tx *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: tx}
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.CodeSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.CodeSubmission, error) {
	var submission models.CodeSubmission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.CodeSubmission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) List(ctx context.Context, query SubmissionQuery) ([]models.CodeSubmission, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.CodeSubmission{})

	if query.UserID != 0 {
		db = db.Where("user_id = ?", query.UserID)
	}
	if query.QuestionID != 0 {
		db = db.Where("question_id = ?", query.QuestionID)
	}
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if query.Offset > 0 {
		db = db.Offset(query.Offset)
	}
	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}

	var submissions []models.CodeSubmission
	if err := db.Order("submitted_at DESC, id DESC").Find(&submissions).Error; err != nil {
		return nil, 0, err
	}

	return submissions, total, nil
}

func (r *submissionRepository) FirstAccepted(ctx context.Context, userID, questionID uint) (models.CodeSubmission, error) {
	var submission models.CodeSubmission
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND question_id = ? AND status = ?", userID, questionID, models.VerdictAccepted).
		Order("submitted_at ASC, id ASC").
		First(&submission).Error
	if err != nil {
		return models.CodeSubmission{}, err
	}
	return submission, nil
}

// UserTotals recomputes a user's aggregate counters from scratch. The
// per-user statistics row is a cache over this query.
func (r *submissionRepository) UserTotals(ctx context.Context, userID uint) (UserTotals, error) {
	db := r.db.WithContext(ctx).Model(&models.CodeSubmission{})

	var totals UserTotals
	var total, accepted, solved int64

	if err := db.Session(&gorm.Session{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return UserTotals{}, err
	}
	if err := db.Session(&gorm.Session{}).
		Where("user_id = ? AND status = ?", userID, models.VerdictAccepted).
		Count(&accepted).Error; err != nil {
		return UserTotals{}, err
	}
	if err := db.Session(&gorm.Session{}).
		Where("user_id = ? AND status = ?", userID, models.VerdictAccepted).
		Distinct("question_id").
		Count(&solved).Error; err != nil {
		return UserTotals{}, err
	}

	var totalScore *float64
	if err := db.Session(&gorm.Session{}).
		Where("user_id = ?", userID).
		Select("SUM(score)").
		Scan(&totalScore).Error; err != nil {
		return UserTotals{}, err
	}

	totals.TotalSubmissions = int(total)
	totals.AcceptedSubmissions = int(accepted)
	totals.SolvedQuestions = int(solved)
	if totalScore != nil {
		totals.TotalScore = *totalScore
	}

	return totals, nil
}
