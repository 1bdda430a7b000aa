package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/edualab/quizjudge-api/internal/config"
	"github.com/edualab/quizjudge-api/internal/dto"
	"github.com/edualab/quizjudge-api/internal/handler"
	"github.com/edualab/quizjudge-api/internal/middleware"
	"github.com/edualab/quizjudge-api/internal/models"
	"github.com/edualab/quizjudge-api/internal/repository"
	"github.com/edualab/quizjudge-api/internal/router"
	"github.com/edualab/quizjudge-api/internal/service"
	"github.com/edualab/quizjudge-api/pkg/sandbox"
)

// echoRunner replies with a canned output per stdin, standing in for a real
// interpreter.
type echoRunner struct {
	outputs map[string]string
}

func (r echoRunner) Run(_ context.Context, req sandbox.Request) sandbox.Result {
	output, ok := r.outputs[req.Stdin]
	if !ok {
		return sandbox.Result{Status: sandbox.StatusError, ErrorMsg: "unexpected input"}
	}
	return sandbox.Result{Status: sandbox.StatusSuccess, Output: output}
}

func setupJudgeApp(t *testing.T, runner sandbox.Runner) *fiber.App {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.CodingQuestion{},
		&models.CodeSubmission{},
		&models.QuestionStatistics{},
		&models.UserStatistics{},
	))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	registry := sandbox.NewRegistry()
	registry.Register("python", runner)

	questionRepo := repository.NewQuestionRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	statsRepo := repository.NewStatisticsRepository(db)

	judgeService := service.NewJudgeService(questionRepo, registry, validate, logger)
	statsService := service.NewStatsService(statsRepo, nil, 0, logger)
	submissionService := service.NewSubmissionService(judgeService, submissionRepo, statsRepo, db, statsService, nil, "", validate, logger)
	questionService := service.NewQuestionService(questionRepo, validate, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		JudgeHandler:      handler.NewJudgeHandler(judgeService, logger),
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, logger),
		QuestionHandler:   handler.NewQuestionHandler(questionService, logger),
		StatsHandler:      handler.NewStatsHandler(statsService, logger),
		Languages:         judgeService.Languages,
		JWTMiddleware: func(c *fiber.Ctx) error {
			if id, err := strconv.Atoi(c.Get("X-Test-User")); err == nil {
				c.Locals("user_id", uint(id))
			}
			if role := c.Get("X-Test-Role"); role != "" {
				c.Locals("user_role", role)
			}
			return c.Next()
		},
	})

	return app
}

func decode[T any](t *testing.T, resp *http.Response, target *T) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target))
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload interface{}, userID int, role string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("X-Test-User", strconv.Itoa(userID))
	}
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestJudgeEndToEndFlow(t *testing.T) {
	app := setupJudgeApp(t, echoRunner{outputs: map[string]string{
		"1 2":   "3\n",
		"10 20": "30\n",
	}})

	// Admin publishes a question with one visible and one hidden case.
	createResp := doJSON(t, app, http.MethodPost, "/api/v1/coding/questions", dto.QuestionCreateRequest{
		Title:       "Sum two numbers",
		Language:    "python",
		TestCases:   []dto.TestCasePayload{{Input: "1 2", Output: "3"}},
		HiddenCases: []dto.TestCasePayload{{Input: "10 20", Output: "30"}},
	}, 9001, "admin")
	require.Equal(t, fiber.StatusCreated, createResp.StatusCode)

	var created struct {
		Data dto.QuestionResponse `json:"data"`
	}
	decode(t, createResp, &created)
	require.NotZero(t, created.Data.ID)

	// A learner sees the visible case only.
	getResp := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/coding/questions/%d", created.Data.ID), nil, 1, "user")
	require.Equal(t, fiber.StatusOK, getResp.StatusCode)
	var fetched struct {
		Data dto.QuestionResponse `json:"data"`
	}
	decode(t, getResp, &fetched)
	require.Len(t, fetched.Data.TestCases, 1)
	require.Empty(t, fetched.Data.HiddenCases)

	// The learner submits a correct solution.
	submitResp := doJSON(t, app, http.MethodPost, "/api/v1/coding/submissions", dto.SubmissionCreateRequest{
		QuestionID: created.Data.ID,
		Code:       "a, b = input().split()\nprint(int(a) + int(b))",
		Language:   "python",
	}, 1, "user")
	require.Equal(t, fiber.StatusCreated, submitResp.StatusCode)

	var submitted struct {
		Data dto.SubmissionResponse `json:"data"`
	}
	decode(t, submitResp, &submitted)
	require.Equal(t, models.VerdictAccepted, submitted.Data.Status)
	require.Equal(t, 2, submitted.Data.PassedCases)
	require.InDelta(t, 100.0, submitted.Data.Score, 0.001)

	// The ledger shows one entry for the learner.
	listResp := doJSON(t, app, http.MethodGet, "/api/v1/coding/submissions", nil, 1, "user")
	require.Equal(t, fiber.StatusOK, listResp.StatusCode)
	var listed struct {
		Data dto.SubmissionListResponse `json:"data"`
	}
	decode(t, listResp, &listed)
	require.Equal(t, int64(1), listed.Data.Total)

	// Aggregate statistics reflect the accepted submission.
	statsResp := doJSON(t, app, http.MethodGet, "/api/v1/coding/stats/me", nil, 1, "user")
	require.Equal(t, fiber.StatusOK, statsResp.StatusCode)
	var stats struct {
		Data dto.UserStatsResponse `json:"data"`
	}
	decode(t, statsResp, &stats)
	require.Equal(t, 1, stats.Data.TotalSubmissions)
	require.Equal(t, 1, stats.Data.SolvedQuestions)
	require.InDelta(t, 1.0, stats.Data.AcceptanceRate, 0.001)
}

func TestJudgeEndToEndQuestionManagementRequiresAdmin(t *testing.T) {
	app := setupJudgeApp(t, echoRunner{})

	resp := doJSON(t, app, http.MethodPost, "/api/v1/coding/questions", dto.QuestionCreateRequest{
		Title:     "Nope",
		Language:  "python",
		TestCases: []dto.TestCasePayload{{Input: "", Output: "x"}},
	}, 1, "user")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
