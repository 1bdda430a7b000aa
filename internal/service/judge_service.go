package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/edualab/quizjudge-api/internal/dto"
	"github.com/edualab/quizjudge-api/internal/models"
	"github.com/edualab/quizjudge-api/internal/repository"
	"github.com/edualab/quizjudge-api/pkg/codecheck"
	"github.com/edualab/quizjudge-api/pkg/sandbox"
	"github.com/edualab/quizjudge-api/pkg/textnorm"
)

// ErrUnsupportedLanguage indicates no runner is registered for the language.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// JudgeResult is the full outcome of judging one submission against a
// question's test cases.
type JudgeResult struct {
	Status      string
	PassedCases int
	TotalCases  int
	CaseResults []models.CaseResult
	// ExecutionTime is the summed per-case wall-clock time in seconds,
	// rounded to millisecond precision.
	ExecutionTime float64
	Score         float64
	ErrorMessage  string
}

// JudgeService evaluates code against stored questions and runs ad-hoc
// snippets without persisting anything.
type JudgeService interface {
	Judge(ctx context.Context, questionID uint, code, language string, timeLimit time.Duration) (JudgeResult, error)
	Execute(ctx context.Context, payload dto.ExecuteRequest) (dto.ExecuteResponse, error)
	Languages() []string
}

type judgeService struct {
	questions repository.QuestionRepository
	runners   *sandbox.Registry
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewJudgeService constructs a judge service.
func NewJudgeService(questionRepo repository.QuestionRepository, runners *sandbox.Registry, validate *validator.Validate, logger zerolog.Logger) JudgeService {
	return &judgeService{
		questions: questionRepo,
		runners:   runners,
		validator: validate,
		logger:    logger.With().Str("component", "judge_service").Logger(),
		tracer:    otel.Tracer("github.com/edualab/quizjudge-api/internal/service/judge"),
	}
}

// Judge runs the submission against every test case of the question.
// Configuration and input errors never surface as Go errors: they become
// terminal verdicts so the caller can persist them like any other outcome.
func (s *judgeService) Judge(ctx context.Context, questionID uint, code, language string, timeLimit time.Duration) (JudgeResult, error) {
	spanCtx, span := s.tracer.Start(ctx, "judge.run", trace.WithAttributes(
		attribute.Int("question.id", int(questionID)),
		attribute.String("submission.language", language),
	))
	defer span.End()

	runner, ok := s.runners.Lookup(language)
	if !ok {
		return JudgeResult{
			Status:       models.VerdictCompilationError,
			ErrorMessage: fmt.Sprintf("unsupported language: %s", language),
		}, nil
	}

	question, err := s.questions.GetByID(spanCtx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return JudgeResult{
				Status:       models.VerdictCompilationError,
				ErrorMessage: "question not found",
			}, nil
		}
		span.RecordError(err)
		return JudgeResult{}, err
	}

	cases := question.ParsedCases().Combined()
	if len(cases) == 0 {
		return JudgeResult{
			Status:       models.VerdictCompilationError,
			ErrorMessage: "no test cases",
		}, nil
	}

	limit := timeLimit
	if limit <= 0 && question.TimeLimitSec > 0 {
		limit = time.Duration(question.TimeLimitSec) * time.Second
	}

	// Screen once up front so rejected code never reaches the executor,
	// not even for the first case.
	if err := codecheck.Validate(code); err != nil {
		return rejectionResult(err, cases, len(cases)), nil
	}

	result := s.runCases(spanCtx, runner, code, cases, limit)
	result.Score = caseScore(result.PassedCases, result.TotalCases)

	s.logger.Info().
		Uint("question_id", questionID).
		Str("status", result.Status).
		Int("passed", result.PassedCases).
		Int("total", result.TotalCases).
		Float64("execution_time", result.ExecutionTime).
		Msg("submission judged")

	return result, nil
}

func (s *judgeService) runCases(ctx context.Context, runner sandbox.Runner, code string, cases []models.TestCase, limit time.Duration) JudgeResult {
	var (
		diagnostics []models.CaseResult
		passed      int
		totalTime   time.Duration
	)

	for i, testCase := range cases {
		caseID := i + 1
		run := runner.Run(ctx, sandbox.Request{
			Source:    code,
			Stdin:     testCase.Input,
			TimeLimit: limit,
		})
		totalTime += run.Duration

		switch run.Status {
		case sandbox.StatusTimeout:
			diagnostics = append(diagnostics, models.CaseResult{
				CaseID:         caseID,
				Status:         models.CaseStatusFailed,
				Input:          testCase.Input,
				ExpectedOutput: testCase.Output,
				ExecutionTime:  roundSeconds(run.Duration),
				Error:          "time limit exceeded",
			})
			return JudgeResult{
				Status:        models.VerdictTimeLimitExceeded,
				PassedCases:   passed,
				TotalCases:    len(cases),
				CaseResults:   diagnostics,
				ExecutionTime: roundSeconds(totalTime),
				ErrorMessage:  fmt.Sprintf("time limit exceeded on test case %d", caseID),
			}

		case sandbox.StatusError:
			diagnostics = append(diagnostics, models.CaseResult{
				CaseID:         caseID,
				Status:         models.CaseStatusFailed,
				Input:          testCase.Input,
				ExpectedOutput: testCase.Output,
				ExecutionTime:  roundSeconds(run.Duration),
				Error:          run.ErrorMsg,
			})
			// An error on the very first case means the program cannot run
			// at all, so there is nothing left to learn from later cases.
			if i == 0 {
				return JudgeResult{
					Status:        models.VerdictRuntimeError,
					PassedCases:   0,
					TotalCases:    len(cases),
					CaseResults:   diagnostics,
					ExecutionTime: roundSeconds(totalTime),
					ErrorMessage:  run.ErrorMsg,
				}
			}

		default:
			status := models.CaseStatusFailed
			if textnorm.Equivalent(run.Output, testCase.Output, false) {
				status = models.CaseStatusPassed
				passed++
			}
			diagnostics = append(diagnostics, models.CaseResult{
				CaseID:         caseID,
				Status:         status,
				Input:          testCase.Input,
				ExpectedOutput: testCase.Output,
				ActualOutput:   run.Output,
				ExecutionTime:  roundSeconds(run.Duration),
			})
		}
	}

	result := JudgeResult{
		PassedCases:   passed,
		TotalCases:    len(cases),
		CaseResults:   diagnostics,
		ExecutionTime: roundSeconds(totalTime),
	}

	switch {
	case passed == len(cases):
		result.Status = models.VerdictAccepted
	case passed == 0:
		result.Status = models.VerdictWrongAnswer
		result.ErrorMessage = "all test cases failed"
	default:
		result.Status = models.VerdictWrongAnswer
		result.ErrorMessage = fmt.Sprintf("passed %d/%d test cases", passed, len(cases))
	}

	return result
}

// Execute runs an ad-hoc snippet against a single optional stdin. Nothing is
// persisted and no verdict is computed.
func (s *judgeService) Execute(ctx context.Context, payload dto.ExecuteRequest) (dto.ExecuteResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExecuteResponse{}, err
	}

	runner, ok := s.runners.Lookup(payload.Language)
	if !ok {
		return dto.ExecuteResponse{}, ErrUnsupportedLanguage
	}

	var limit time.Duration
	if payload.TimeLimit > 0 {
		limit = time.Duration(payload.TimeLimit) * time.Second
	}

	run := runner.Run(ctx, sandbox.Request{
		Source:    payload.Code,
		Stdin:     payload.Input,
		TimeLimit: limit,
	})

	return dto.ExecuteResponse{
		Status:        run.Status,
		Output:        run.Output,
		Error:         run.ErrorMsg,
		ExecutionTime: roundSeconds(run.Duration),
	}, nil
}

func (s *judgeService) Languages() []string {
	return s.runners.Languages()
}

// rejectionResult maps a static validation failure onto a verdict. Syntax
// errors are the learner's compile failure; forbidden constructs surface as
// a first-case runtime failure, matching what executing the code would show.
func rejectionResult(err error, cases []models.TestCase, total int) JudgeResult {
	rejection, ok := codecheck.AsRejection(err)
	if !ok {
		rejection = &codecheck.Rejection{Reason: err.Error()}
	}

	if rejection.Syntax {
		return JudgeResult{
			Status:       models.VerdictCompilationError,
			TotalCases:   total,
			ErrorMessage: rejection.Reason,
		}
	}

	diagnostic := models.CaseResult{
		CaseID: 1,
		Status: models.CaseStatusFailed,
		Error:  rejection.Reason,
	}
	if len(cases) > 0 {
		diagnostic.Input = cases[0].Input
		diagnostic.ExpectedOutput = cases[0].Output
	}

	return JudgeResult{
		Status:       models.VerdictRuntimeError,
		TotalCases:   total,
		CaseResults:  []models.CaseResult{diagnostic},
		ErrorMessage: rejection.Reason,
	}
}

func caseScore(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(passed)/float64(total)*10000) / 100
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}
