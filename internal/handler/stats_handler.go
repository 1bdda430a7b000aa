package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/edualab/quizjudge-api/internal/service"
	"github.com/edualab/quizjudge-api/internal/utils"
)

// StatsHandler exposes submission statistics endpoints.
type StatsHandler struct {
	service service.StatsService
	logger  zerolog.Logger
}

// NewStatsHandler constructs the handler.
func NewStatsHandler(stats service.StatsService, logger zerolog.Logger) *StatsHandler {
	return &StatsHandler{
		service: stats,
		logger:  logger.With().Str("component", "stats_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *StatsHandler) Register(router fiber.Router) {
	router.Get("/me", h.me)
	router.Get("/questions/:id", h.question)
}

func (h *StatsHandler) me(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	response, err := h.service.UserStats(c.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Uint("user_id", userID).Msg("failed to load user stats")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "statistics retrieved", response)
}

func (h *StatsHandler) question(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	questionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid question id")
	}

	response, err := h.service.QuestionStats(c.Context(), userID, questionID)
	if err != nil {
		h.logger.Error().Err(err).Uint("question_id", questionID).Msg("failed to load question stats")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "statistics retrieved", response)
}
