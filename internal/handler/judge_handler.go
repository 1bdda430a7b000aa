package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/edualab/quizjudge-api/internal/dto"
	"github.com/edualab/quizjudge-api/internal/service"
	"github.com/edualab/quizjudge-api/internal/utils"
)

// JudgeHandler exposes ad-hoc code execution endpoints.
type JudgeHandler struct {
	service service.JudgeService
	logger  zerolog.Logger
}

// NewJudgeHandler constructs the handler.
func NewJudgeHandler(judge service.JudgeService, logger zerolog.Logger) *JudgeHandler {
	return &JudgeHandler{
		service: judge,
		logger:  logger.With().Str("component", "judge_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *JudgeHandler) Register(router fiber.Router) {
	router.Post("/execute", h.execute)
	router.Get("/languages", h.languages)
}

func (h *JudgeHandler) execute(c *fiber.Ctx) error {
	var payload dto.ExecuteRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Execute(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "execution completed", response)
}

func (h *JudgeHandler) languages(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "languages retrieved", fiber.Map{"languages": h.service.Languages()})
}

func (h *JudgeHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrUnsupportedLanguage):
		return utils.SendError(c, fiber.StatusBadRequest, "language not supported")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("execution failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
