package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/edualab/quizjudge-api/internal/dto"
	"github.com/edualab/quizjudge-api/internal/models"
	"github.com/edualab/quizjudge-api/internal/repository"
)

// ErrQuestionNotFound indicates the coding question cannot be located.
var ErrQuestionNotFound = errors.New("question not found")

// ErrNoTestCases indicates a question payload carries no cases at all, which
// would make every submission unjudgeable.
var ErrNoTestCases = errors.New("question must define at least one test case")

// QuestionListQuery defines filters and pagination for the catalog.
type QuestionListQuery struct {
	Language string
	Search   string
	Page     int
	PerPage  int
}

// QuestionService manages the coding question catalog.
type QuestionService interface {
	Create(ctx context.Context, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error)
	Update(ctx context.Context, id uint, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error)
	Get(ctx context.Context, id uint, includeHidden bool) (dto.QuestionResponse, error)
	List(ctx context.Context, query QuestionListQuery, includeHidden bool) (dto.QuestionListResponse, error)
}

type questionService struct {
	questions repository.QuestionRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewQuestionService constructs a question catalog service.
func NewQuestionService(questionRepo repository.QuestionRepository, validate *validator.Validate, logger zerolog.Logger) QuestionService {
	return &questionService{
		questions: questionRepo,
		validator: validate,
		logger:    logger.With().Str("component", "question_service").Logger(),
	}
}

func (s *questionService) Create(ctx context.Context, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error) {
	question, err := s.buildQuestion(models.CodingQuestion{}, payload)
	if err != nil {
		return dto.QuestionResponse{}, err
	}

	if err := s.questions.Create(ctx, &question); err != nil {
		return dto.QuestionResponse{}, err
	}

	s.logger.Info().Uint("question_id", question.ID).Str("language", question.Language).Msg("question created")

	return dto.NewQuestionResponse(question, true), nil
}

func (s *questionService) Update(ctx context.Context, id uint, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error) {
	existing, err := s.questions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionResponse{}, ErrQuestionNotFound
		}
		return dto.QuestionResponse{}, err
	}

	question, err := s.buildQuestion(existing, payload)
	if err != nil {
		return dto.QuestionResponse{}, err
	}

	if err := s.questions.Update(ctx, &question); err != nil {
		return dto.QuestionResponse{}, err
	}

	return dto.NewQuestionResponse(question, true), nil
}

func (s *questionService) buildQuestion(base models.CodingQuestion, payload dto.QuestionCreateRequest) (models.CodingQuestion, error) {
	if err := s.validator.Struct(payload); err != nil {
		return models.CodingQuestion{}, err
	}

	cases := dto.ToModelCases(payload.TestCases, payload.HiddenCases)
	if len(cases.Combined()) == 0 {
		return models.CodingQuestion{}, ErrNoTestCases
	}

	encoded, err := json.Marshal(cases)
	if err != nil {
		return models.CodingQuestion{}, err
	}

	base.Title = payload.Title
	base.Description = payload.Description
	base.Language = strings.ToLower(strings.TrimSpace(payload.Language))
	base.Cases = encoded
	if payload.TimeLimitSec > 0 {
		base.TimeLimitSec = payload.TimeLimitSec
	} else if base.TimeLimitSec == 0 {
		base.TimeLimitSec = 5
	}
	if payload.MemoryLimitMB > 0 {
		base.MemoryLimitMB = payload.MemoryLimitMB
	} else if base.MemoryLimitMB == 0 {
		base.MemoryLimitMB = 128
	}

	return base, nil
}

func (s *questionService) Get(ctx context.Context, id uint, includeHidden bool) (dto.QuestionResponse, error) {
	question, err := s.questions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionResponse{}, ErrQuestionNotFound
		}
		return dto.QuestionResponse{}, err
	}

	return dto.NewQuestionResponse(question, includeHidden), nil
}

func (s *questionService) List(ctx context.Context, query QuestionListQuery, includeHidden bool) (dto.QuestionListResponse, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	perPage := query.PerPage
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	questions, total, err := s.questions.List(ctx, repository.QuestionQuery{
		Language: query.Language,
		Search:   query.Search,
		Offset:   (page - 1) * perPage,
		Limit:    perPage,
	})
	if err != nil {
		return dto.QuestionListResponse{}, err
	}

	responses := make([]dto.QuestionResponse, 0, len(questions))
	for _, question := range questions {
		responses = append(responses, dto.NewQuestionResponse(question, includeHidden))
	}

	return dto.QuestionListResponse{
		Questions: responses,
		Total:     total,
		Page:      page,
		PerPage:   perPage,
	}, nil
}
