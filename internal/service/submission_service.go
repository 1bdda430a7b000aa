package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/edualab/quizjudge-api/internal/dto"
	"github.com/edualab/quizjudge-api/internal/models"
	"github.com/edualab/quizjudge-api/internal/observability"
	"github.com/edualab/quizjudge-api/internal/repository"
)

// ErrSubmissionNotFound indicates the submission cannot be located.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrSubmissionForbidden indicates the caller may not access the submission.
var ErrSubmissionForbidden = errors.New("forbidden")

// SubmissionListQuery defines filters and pagination for listings.
type SubmissionListQuery struct {
	QuestionID uint
	Status     string
	Page       int
	PerPage    int
}

// StatsCache invalidates cached statistics after a recorded submission.
type StatsCache interface {
	InvalidateUser(ctx context.Context, userID uint)
}

// SubmissionService judges incoming submissions and maintains the
// append-only submission ledger with its derived statistics.
type SubmissionService interface {
	Submit(ctx context.Context, userID uint, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error)
	Get(ctx context.Context, id uint, viewerID uint, role string) (dto.SubmissionResponse, error)
	List(ctx context.Context, viewerID uint, role string, query SubmissionListQuery) (dto.SubmissionListResponse, error)
}

type submissionService struct {
	judge       JudgeService
	submissions repository.SubmissionRepository
	stats       repository.StatisticsRepository
	db          *gorm.DB
	cache       StatsCache
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	userLocks   *userLocks
}

type submissionJudgedEvent struct {
	SubmissionID uint      `json:"submission_id"`
	UserID       uint      `json:"user_id"`
	QuestionID   uint      `json:"question_id"`
	Status       string    `json:"status"`
	Score        float64   `json:"score"`
	JudgedAt     time.Time `json:"judged_at"`
}

// NewSubmissionService constructs a submission service. The cache and NATS
// connection are optional; both degrade to no-ops when nil.
func NewSubmissionService(judge JudgeService, submissionRepo repository.SubmissionRepository, statsRepo repository.StatisticsRepository, db *gorm.DB, cache StatsCache, natsConn *nats.Conn, natsSubject string, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		judge:       judge,
		submissions: submissionRepo,
		stats:       statsRepo,
		db:          db,
		cache:       cache,
		nats:        natsConn,
		natsSubject: natsSubject,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		userLocks:   newUserLocks(),
	}
}

func (s *submissionService) Submit(ctx context.Context, userID uint, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	var limit time.Duration
	if payload.TimeLimit > 0 {
		limit = time.Duration(payload.TimeLimit) * time.Second
	}

	result, err := s.judge.Judge(ctx, payload.QuestionID, payload.Code, payload.Language, limit)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	caseResults, err := json.Marshal(result.CaseResults)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission := models.CodeSubmission{
		UserID:        userID,
		QuestionID:    payload.QuestionID,
		Code:          payload.Code,
		Language:      strings.ToLower(strings.TrimSpace(payload.Language)),
		Status:        result.Status,
		PassedCases:   result.PassedCases,
		TotalCases:    result.TotalCases,
		ExecutionTime: result.ExecutionTime,
		Score:         result.Score,
		ErrorMessage:  result.ErrorMessage,
		CaseResults:   caseResults,
	}

	if err := s.record(ctx, userID, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if s.cache != nil {
		s.cache.InvalidateUser(ctx, userID)
	}
	s.publishJudged(submission)
	observability.Verdicts().WithLabelValues(submission.Status).Inc()

	return dto.NewSubmissionResponse(submission, true), nil
}

// record persists the submission and applies its statistics updates in one
// transaction. The per-user lock serialises concurrent submissions from the
// same account across the whole read-modify-write sequence.
func (s *submissionService) record(ctx context.Context, userID uint, submission *models.CodeSubmission) error {
	release := s.userLocks.acquire(userID)
	defer release()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.submissions.WithTx(tx).Create(ctx, submission); err != nil {
			return err
		}
		if err := s.applyQuestionStats(ctx, tx, *submission); err != nil {
			return err
		}
		return s.rebuildUserStats(ctx, tx, userID)
	})
}

func (s *submissionService) applyQuestionStats(ctx context.Context, tx *gorm.DB, submission models.CodeSubmission) error {
	statsRepo := s.stats.WithTx(tx)

	stats, err := statsRepo.GetQuestionStatsLocked(ctx, submission.UserID, submission.QuestionID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		stats = models.QuestionStatistics{
			UserID:     submission.UserID,
			QuestionID: submission.QuestionID,
		}
	}

	stats.TotalSubmissions++
	stats.LastSubmittedAt = submission.SubmittedAt

	if submission.IsAccepted() {
		stats.AcceptedSubmissions++
		if submission.Score > stats.BestScore {
			stats.BestScore = submission.Score
		}
		if stats.FirstAcceptedAt == nil {
			acceptedAt := submission.SubmittedAt
			stats.FirstAcceptedAt = &acceptedAt
		}
		if stats.BestTime == nil || submission.ExecutionTime < *stats.BestTime {
			executionTime := submission.ExecutionTime
			stats.BestTime = &executionTime
		}
	}

	return statsRepo.SaveQuestionStats(ctx, &stats)
}

// rebuildUserStats recomputes the per-user aggregate from the submission
// table rather than incrementing counters, so the row can never drift.
func (s *submissionService) rebuildUserStats(ctx context.Context, tx *gorm.DB, userID uint) error {
	totals, err := s.submissions.WithTx(tx).UserTotals(ctx, userID)
	if err != nil {
		return err
	}

	stats := models.UserStatistics{
		UserID:              userID,
		TotalSubmissions:    totals.TotalSubmissions,
		AcceptedSubmissions: totals.AcceptedSubmissions,
		SolvedQuestions:     totals.SolvedQuestions,
		TotalScore:          totals.TotalScore,
		UpdatedAt:           time.Now().UTC(),
	}
	if totals.TotalSubmissions > 0 {
		stats.AverageScore = totals.TotalScore / float64(totals.TotalSubmissions)
		stats.AcceptanceRate = float64(totals.AcceptedSubmissions) / float64(totals.TotalSubmissions)
	}

	return s.stats.WithTx(tx).UpsertUserStats(ctx, &stats)
}

func (s *submissionService) publishJudged(submission models.CodeSubmission) {
	if s.nats == nil || s.natsSubject == "" {
		return
	}

	event := submissionJudgedEvent{
		SubmissionID: submission.ID,
		UserID:       submission.UserID,
		QuestionID:   submission.QuestionID,
		Status:       submission.Status,
		Score:        submission.Score,
		JudgedAt:     time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode submission event")
		return
	}
	if err := s.nats.Publish(s.natsSubject, payload); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to publish submission event")
	}
}

func (s *submissionService) Get(ctx context.Context, id uint, viewerID uint, role string) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if !canViewSubmission(viewerID, role, submission) {
		return dto.SubmissionResponse{}, ErrSubmissionForbidden
	}

	return dto.NewSubmissionResponse(submission, true), nil
}

func (s *submissionService) List(ctx context.Context, viewerID uint, role string, query SubmissionListQuery) (dto.SubmissionListResponse, error) {
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

	repoQuery := repository.SubmissionQuery{
		QuestionID: query.QuestionID,
		Status:     query.Status,
		Offset:     (page - 1) * perPage,
		Limit:      perPage,
	}
	// Non-admin viewers only ever see their own ledger.
	if !isAdmin(role) {
		repoQuery.UserID = viewerID
	}

	submissions, total, err := s.submissions.List(ctx, repoQuery)
	if err != nil {
		return dto.SubmissionListResponse{}, err
	}

	responses := make([]dto.SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, dto.NewSubmissionResponse(submission, canViewSubmission(viewerID, role, submission)))
	}

	return dto.SubmissionListResponse{
		Submissions: responses,
		Total:       total,
		Page:        page,
		PerPage:     perPage,
	}, nil
}

func canViewSubmission(viewerID uint, role string, submission models.CodeSubmission) bool {
	if viewerID != 0 && viewerID == submission.UserID {
		return true
	}
	return isAdmin(role)
}

func isAdmin(role string) bool {
	return strings.ToLower(strings.TrimSpace(role)) == "admin"
}
