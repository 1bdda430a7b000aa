package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/edualab/quizjudge-api/internal/config"
	"github.com/edualab/quizjudge-api/internal/handler"
	"github.com/edualab/quizjudge-api/internal/middleware"
	"github.com/edualab/quizjudge-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	JudgeHandler      *handler.JudgeHandler
	SubmissionHandler *handler.SubmissionHandler
	QuestionHandler   *handler.QuestionHandler
	StatsHandler      *handler.StatsHandler
	Languages         func() []string
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Languages))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	coding := api.Group("/coding", jwtMiddleware)

	if deps.JudgeHandler != nil {
		// Ad-hoc execution spawns an interpreter per request, so it gets a
		// tighter per-user budget than the rest of the API.
		executeLimit := cfg.ExecuteRateLimit
		if executeLimit <= 0 {
			executeLimit = 10
		}
		coding.Use("/execute", middleware.RateLimit("execute", executeLimit, time.Minute))
		deps.JudgeHandler.Register(coding)
	}

	if deps.QuestionHandler != nil {
		questionGroup := coding.Group("/questions")
		deps.QuestionHandler.Register(questionGroup)

		adminGroup := coding.Group("/questions", middleware.RequireRole("admin"))
		deps.QuestionHandler.RegisterAdmin(adminGroup)
	}

	if deps.SubmissionHandler != nil {
		submissionGroup := coding.Group("/submissions")
		deps.SubmissionHandler.Register(submissionGroup)
	}

	if deps.StatsHandler != nil {
		statsGroup := coding.Group("/stats")
		deps.StatsHandler.Register(statsGroup)
	}
}
