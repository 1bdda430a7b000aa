package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/edualab/quizjudge-api/internal/models"
)

// QuestionQuery defines filters and pagination for coding questions.
type QuestionQuery struct {
	Language string
	Search   string
	Offset   int
	Limit    int
}

// QuestionRepository exposes persistence operations for coding questions.
type QuestionRepository interface {
	Create(ctx context.Context, question *models.CodingQuestion) error
	Update(ctx context.Context, question *models.CodingQuestion) error
	GetByID(ctx context.Context, id uint) (models.CodingQuestion, error)
	List(ctx context.Context, query QuestionQuery) ([]models.CodingQuestion, int64, error)
}

// NewQuestionRepository constructs a coding question repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

type questionRepository struct {
	db *gorm.DB
}

func (r *questionRepository) Create(ctx context.Context, question *models.CodingQuestion) error {
	return r.db.WithContext(ctx).Create(question).Error
}

func (r *questionRepository) Update(ctx context.Context, question *models.CodingQuestion) error {
	return r.db.WithContext(ctx).Save(question).Error
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (models.CodingQuestion, error) {
	var question models.CodingQuestion
	if err := r.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return models.CodingQuestion{}, err
	}
	return question, nil
}

func (r *questionRepository) List(ctx context.Context, query QuestionQuery) ([]models.CodingQuestion, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.CodingQuestion{})

	if query.Language != "" {
		db = db.Where("LOWER(language) = ?", strings.ToLower(query.Language))
	}

	if query.Search != "" {
		pattern := fmt.Sprintf("%%%s%%", strings.ToLower(query.Search))
		db = db.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
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

	var questions []models.CodingQuestion
	if err := db.Order("created_at DESC").Find(&questions).Error; err != nil {
		return nil, 0, err
	}

	return questions, total, nil
}
