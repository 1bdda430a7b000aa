package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/edualab/quizjudge-api/internal/config"
	"github.com/edualab/quizjudge-api/internal/dto"
	"github.com/edualab/quizjudge-api/internal/handler"
	"github.com/edualab/quizjudge-api/internal/service"
	"github.com/edualab/quizjudge-api/pkg/sandbox"
)

type mockJudgeService struct {
	executeResponse dto.ExecuteResponse
	executeErr      error
}

func (m *mockJudgeService) Judge(_ context.Context, questionID uint, code, language string, timeLimit time.Duration) (service.JudgeResult, error) {
	return service.JudgeResult{}, nil
}

func (m *mockJudgeService) Execute(_ context.Context, payload dto.ExecuteRequest) (dto.ExecuteResponse, error) {
	if m.executeErr != nil {
		return dto.ExecuteResponse{}, m.executeErr
	}
	return m.executeResponse, nil
}

func (m *mockJudgeService) Languages() []string { return []string{"python"} }

func newJudgeApp(svc service.JudgeService) *fiber.App {
	app := fiber.New()
	handler.NewJudgeHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/v1/coding"))
	return app
}

func TestJudgeHandlerExecute(t *testing.T) {
	svc := &mockJudgeService{executeResponse: dto.ExecuteResponse{
		Status:        sandbox.StatusSuccess,
		Output:        "hello",
		ExecutionTime: 0.03,
	}}
	app := newJudgeApp(svc)

	body, err := json.Marshal(dto.ExecuteRequest{Code: "print('hello')", Language: "python"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/coding/execute", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Success bool                `json:"success"`
		Data    dto.ExecuteResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, "hello", response.Data.Output)
}

func TestJudgeHandlerExecuteUnsupportedLanguage(t *testing.T) {
	app := newJudgeApp(&mockJudgeService{executeErr: service.ErrUnsupportedLanguage})

	body, err := json.Marshal(dto.ExecuteRequest{Code: "puts 'hi'", Language: "ruby"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/coding/execute", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHealthCheckReportsLanguages(t *testing.T) {
	app := fiber.New()
	cfg := config.Config{AppName: "QuizJudge API", AppEnv: "test"}
	app.Get("/api/v1/health", handler.HealthCheck(cfg, func() []string { return []string{"python"} }))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Success bool                   `json:"success"`
		Data    handler.HealthResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, "ok", response.Data.Status)
	require.Equal(t, []string{"python"}, response.Data.Languages)
}
