package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/edualab/quizjudge-api/internal/dto"
	"github.com/edualab/quizjudge-api/internal/models"
	"github.com/edualab/quizjudge-api/internal/repository"
	"github.com/edualab/quizjudge-api/pkg/sandbox"
)

type stubQuestionRepo struct {
	question models.CodingQuestion
	err      error
}

func (s *stubQuestionRepo) Create(ctx context.Context, question *models.CodingQuestion) error {
	return errors.New("not implemented")
}

func (s *stubQuestionRepo) Update(ctx context.Context, question *models.CodingQuestion) error {
	return errors.New("not implemented")
}

func (s *stubQuestionRepo) GetByID(ctx context.Context, id uint) (models.CodingQuestion, error) {
	if s.err != nil {
		return models.CodingQuestion{}, s.err
	}
	if s.question.ID == 0 {
		return models.CodingQuestion{}, gorm.ErrRecordNotFound
	}
	return s.question, nil
}

func (s *stubQuestionRepo) List(ctx context.Context, query repository.QuestionQuery) ([]models.CodingQuestion, int64, error) {
	return nil, 0, errors.New("not implemented")
}

// scriptedRunner replays a fixed sequence of results and records every
// request it receives.
type scriptedRunner struct {
	results []sandbox.Result
	calls   []sandbox.Request
}

func (r *scriptedRunner) Run(ctx context.Context, req sandbox.Request) sandbox.Result {
	r.calls = append(r.calls, req)
	if len(r.results) == 0 {
		return sandbox.Result{Status: sandbox.StatusError, ErrorMsg: "unscripted call"}
	}
	result := r.results[0]
	r.results = r.results[1:]
	return result
}

func testQuestion(t *testing.T, cases models.QuestionCases) models.CodingQuestion {
	t.Helper()
	encoded, err := json.Marshal(cases)
	require.NoError(t, err)
	return models.CodingQuestion{
		ID:           1,
		Title:        "Sum two numbers",
		Language:     "python",
		TimeLimitSec: 2,
		Cases:        encoded,
	}
}

func newJudgeService(repo repository.QuestionRepository, runner sandbox.Runner) JudgeService {
	registry := sandbox.NewRegistry()
	if runner != nil {
		registry.Register("python", runner)
	}
	return NewJudgeService(repo, registry, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
}

func TestJudgeUnsupportedLanguage(t *testing.T) {
	runner := &scriptedRunner{}
	svc := newJudgeService(&stubQuestionRepo{}, runner)

	result, err := svc.Judge(context.Background(), 1, "print(1)", "ruby", 0)
	require.NoError(t, err)
	require.Equal(t, models.VerdictCompilationError, result.Status)
	require.Contains(t, result.ErrorMessage, "unsupported language")
	require.Empty(t, runner.calls)
}

func TestJudgeQuestionNotFound(t *testing.T) {
	runner := &scriptedRunner{}
	svc := newJudgeService(&stubQuestionRepo{}, runner)

	result, err := svc.Judge(context.Background(), 42, "print(1)", "python", 0)
	require.NoError(t, err)
	require.Equal(t, models.VerdictCompilationError, result.Status)
	require.Equal(t, "question not found", result.ErrorMessage)
	require.Empty(t, runner.calls)
}

func TestJudgeQuestionWithoutCases(t *testing.T) {
	runner := &scriptedRunner{}
	repo := &stubQuestionRepo{question: testQuestion(t, models.QuestionCases{})}
	svc := newJudgeService(repo, runner)

	result, err := svc.Judge(context.Background(), 1, "print(1)", "python", 0)
	require.NoError(t, err)
	require.Equal(t, models.VerdictCompilationError, result.Status)
	require.Equal(t, "no test cases", result.ErrorMessage)
	require.Empty(t, runner.calls)
}

func TestJudgeAccepted(t *testing.T) {
	repo := &stubQuestionRepo{question: testQuestion(t, models.QuestionCases{
		TestCases:   []models.TestCase{{Input: "1 2", Output: "3"}},
		HiddenCases: []models.TestCase{{Input: "5 5", Output: "10"}},
	})}
	runner := &scriptedRunner{results: []sandbox.Result{
		{Status: sandbox.StatusSuccess, Output: "3\n", Duration: 40 * time.Millisecond},
		{Status: sandbox.StatusSuccess, Output: "10\n", Duration: 60 * time.Millisecond},
	}}
	svc := newJudgeService(repo, runner)

	result, err := svc.Judge(context.Background(), 1, "a, b = input().split()\nprint(int(a) + int(b))", "python", 0)
	require.NoError(t, err)
	require.Equal(t, models.VerdictAccepted, result.Status)
	require.Equal(t, 2, result.PassedCases)
	require.Equal(t, 2, result.TotalCases)
	require.InDelta(t, 100.0, result.Score, 0.001)
	require.InDelta(t, 0.1, result.ExecutionTime, 0.0001)
	require.Empty(t, result.ErrorMessage)
	require.Len(t, runner.calls, 2)
	require.Equal(t, "1 2", runner.calls[0].Stdin)
	require.Equal(t, 2*time.Second, runner.calls[0].TimeLimit)
}

func TestJudgePartialPass(t *testing.T) {
	repo := &stubQuestionRepo{question: testQuestion(t, models.QuestionCases{
		TestCases: []models.TestCase{
			{Input: "1 2", Output: "3"},
			{Input: "2 2", Output: "4"},
		},
	})}
	runner := &scriptedRunner{results: []sandbox.Result{
		{Status: sandbox.StatusSuccess, Output: "3\n"},
		{Status: sandbox.StatusSuccess, Output: "5\n"},
	}}
	svc := newJudgeService(repo, runner)

	result, err := svc.Judge(context.Background(), 1, "print(3)", "python", 0)
	require.NoError(t, err)
	require.Equal(t, models.VerdictWrongAnswer, result.Status)
	require.Equal(t, 1, result.PassedCases)
	require.Equal(t, "passed 1/2 test cases", result.ErrorMessage)
	require.InDelta(t, 50.0, result.Score, 0.001)
}

func TestJudgeAllCasesFailed(t *testing.T) {
	repo := &stubQuestionRepo{question: testQuestion(t, models.QuestionCases{
		TestCases: []models.TestCase{{Input: "", Output: "ok"}},
	})}
	runner := &scriptedRunner{results: []sandbox.Result{
		{Status: sandbox.StatusSuccess, Output: "nope"},
	}}
	svc := newJudgeService(repo, runner)

	result, err := svc.Judge(context.Background(), 1, "print('nope')", "python", 0)
	require.NoError(t, err)
	require.Equal(t, models.VerdictWrongAnswer, result.Status)
	require.Equal(t, "all test cases failed", result.ErrorMessage)
	require.Zero(t, result.Score)
}

func TestJudgeTimeoutShortCircuits(t *testing.T) {
	repo := &stubQuestionRepo{question: testQuestion(t, models.QuestionCases{
		TestCases: []models.TestCase{
			{Input: "a", Output: "1"},
			{Input: "b", Output: "2"},
			{Input: "c", Output: "3"},
		},
	})}
	runner := &scriptedRunner{results: []sandbox.Result{
		{Status: sandbox.StatusSuccess, Output: "1"},
		{Status: sandbox.StatusTimeout, Duration: 2 * time.Second},
	}}
	svc := newJudgeService(repo, runner)

	result, err := svc.Judge(context.Background(), 1, "print(1)", "python", 0)
	require.NoError(t, err)
	require.Equal(t, models.VerdictTimeLimitExceeded, result.Status)
	require.Equal(t, 1, result.PassedCases)
	require.Equal(t, "time limit exceeded on test case 2", result.ErrorMessage)
	// The third case must never run.
	require.Len(t, runner.calls, 2)
	require.Len(t, result.CaseResults, 2)
	require.Equal(t, "time limit exceeded", result.CaseResults[1].Error)
}

func TestJudgeFirstCaseErrorStops(t *testing.T) {
	repo := &stubQuestionRepo{question: testQuestion(t, models.QuestionCases{
		TestCases: []models.TestCase{
			{Input: "a", Output: "1"},
			{Input: "b", Output: "2"},
		},
	})}
	runner := &scriptedRunner{results: []sandbox.Result{
		{Status: sandbox.StatusError, ErrorMsg: "NameError: name 'x' is not defined"},
	}}
	svc := newJudgeService(repo, runner)

	result, err := svc.Judge(context.Background(), 1, "print(x)", "python", 0)
	require.NoError(t, err)
	require.Equal(t, models.VerdictRuntimeError, result.Status)
	require.Zero(t, result.PassedCases)
	require.Contains(t, result.ErrorMessage, "NameError")
	require.Len(t, runner.calls, 1)
	require.Len(t, result.CaseResults, 1)
}

func TestJudgeLaterCaseErrorContinues(t *testing.T) {
	repo := &stubQuestionRepo{question: testQuestion(t, models.QuestionCases{
		TestCases: []models.TestCase{
			{Input: "1", Output: "1"},
			{Input: "x", Output: "2"},
			{Input: "3", Output: "3"},
		},
	})}
	runner := &scriptedRunner{results: []sandbox.Result{
		{Status: sandbox.StatusSuccess, Output: "1"},
		{Status: sandbox.StatusError, ErrorMsg: "ValueError: invalid literal"},
		{Status: sandbox.StatusSuccess, Output: "3"},
	}}
	svc := newJudgeService(repo, runner)

	result, err := svc.Judge(context.Background(), 1, "print(int(input()))", "python", 0)
	require.NoError(t, err)
	require.Equal(t, models.VerdictWrongAnswer, result.Status)
	require.Equal(t, 2, result.PassedCases)
	require.Len(t, runner.calls, 3)
	require.Len(t, result.CaseResults, 3)
	require.Equal(t, models.CaseStatusFailed, result.CaseResults[1].Status)
}

func TestJudgeForbiddenImportSkipsExecution(t *testing.T) {
	repo := &stubQuestionRepo{question: testQuestion(t, models.QuestionCases{
		TestCases: []models.TestCase{{Input: "a", Output: "1"}},
	})}
	runner := &scriptedRunner{}
	svc := newJudgeService(repo, runner)

	result, err := svc.Judge(context.Background(), 1, "import os\nprint(os.getcwd())", "python", 0)
	require.NoError(t, err)
	require.Equal(t, models.VerdictRuntimeError, result.Status)
	require.Contains(t, result.ErrorMessage, "os")
	require.Empty(t, runner.calls)
	require.Len(t, result.CaseResults, 1)
	require.Equal(t, 1, result.CaseResults[0].CaseID)
	require.Equal(t, "a", result.CaseResults[0].Input)
}

func TestJudgeSyntaxErrorIsCompilationError(t *testing.T) {
	repo := &stubQuestionRepo{question: testQuestion(t, models.QuestionCases{
		TestCases: []models.TestCase{{Input: "", Output: "1"}},
	})}
	runner := &scriptedRunner{}
	svc := newJudgeService(repo, runner)

	result, err := svc.Judge(context.Background(), 1, "def broken(:", "python", 0)
	require.NoError(t, err)
	require.Equal(t, models.VerdictCompilationError, result.Status)
	require.Contains(t, result.ErrorMessage, "syntax error")
	require.Empty(t, runner.calls)
}

func TestExecuteRunsWithoutPersisting(t *testing.T) {
	runner := &scriptedRunner{results: []sandbox.Result{
		{Status: sandbox.StatusSuccess, Output: "hello", Duration: 30 * time.Millisecond},
	}}
	svc := newJudgeService(&stubQuestionRepo{}, runner)

	response, err := svc.Execute(context.Background(), dto.ExecuteRequest{
		Code:     "print('hello')",
		Language: "python",
		Input:    "ignored",
	})
	require.NoError(t, err)
	require.Equal(t, sandbox.StatusSuccess, response.Status)
	require.Equal(t, "hello", response.Output)
	require.InDelta(t, 0.03, response.ExecutionTime, 0.0001)
	require.Len(t, runner.calls, 1)
	require.Equal(t, "ignored", runner.calls[0].Stdin)
}

func TestExecuteUnsupportedLanguage(t *testing.T) {
	svc := newJudgeService(&stubQuestionRepo{}, nil)

	_, err := svc.Execute(context.Background(), dto.ExecuteRequest{Code: "puts 'hi'", Language: "ruby"})
	require.ErrorIs(t, err, ErrUnsupportedLanguage)
}
