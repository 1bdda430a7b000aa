package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/edualab/quizjudge-api/internal/config"
	"github.com/edualab/quizjudge-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Languages   []string  `json:"languages"`
}

// HealthCheck returns a handler that reports application health information,
// including the judging languages this instance can run.
func HealthCheck(cfg config.Config, languages func() []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}
		if languages != nil {
			payload.Languages = languages()
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
