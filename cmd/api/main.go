package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/edualab/quizjudge-api/internal/config"
	"github.com/edualab/quizjudge-api/internal/database"
	"github.com/edualab/quizjudge-api/internal/handler"
	"github.com/edualab/quizjudge-api/internal/middleware"
	"github.com/edualab/quizjudge-api/internal/models"
	"github.com/edualab/quizjudge-api/internal/repository"
	"github.com/edualab/quizjudge-api/internal/router"
	"github.com/edualab/quizjudge-api/internal/service"
	"github.com/edualab/quizjudge-api/pkg/sandbox"
)

const submissionJudgedSubject = "quizjudge.submissions.judged"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.CodingQuestion{},
		&models.CodeSubmission{},
		&models.QuestionStatistics{},
		&models.UserStatistics{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			// Event publishing is best effort; the judge works without it.
			logger.Warn().Err(err).Msg("nats unavailable, submission events disabled")
		} else {
			defer natsConn.Drain()
		}
	}

	runners, err := buildRunnerRegistry(cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialise sandbox: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	questionRepo := repository.NewQuestionRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	statsRepo := repository.NewStatisticsRepository(db)

	judgeService := service.NewJudgeService(questionRepo, runners, validate, logger)
	statsService := service.NewStatsService(statsRepo, redisClient, cfg.StatsCacheTTL, logger)
	submissionService := service.NewSubmissionService(judgeService, submissionRepo, statsRepo, db, statsService, natsConn, submissionJudgedSubject, validate, logger)
	questionService := service.NewQuestionService(questionRepo, validate, logger)

	judgeHandler := handler.NewJudgeHandler(judgeService, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, logger)
	questionHandler := handler.NewQuestionHandler(questionService, logger)
	statsHandler := handler.NewStatsHandler(statsService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		JudgeHandler:      judgeHandler,
		SubmissionHandler: submissionHandler,
		QuestionHandler:   questionHandler,
		StatsHandler:      statsHandler,
		Languages:         judgeService.Languages,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func buildRunnerRegistry(cfg config.Config, logger zerolog.Logger) (*sandbox.Registry, error) {
	registry := sandbox.NewRegistry()

	switch cfg.SandboxBackend {
	case "docker":
		runner, err := sandbox.NewDockerRunner(sandbox.DockerConfig{
			Host:          cfg.DockerHost,
			Image:         cfg.DockerImage,
			WorkspaceRoot: cfg.WorkspaceRoot,
			MemoryLimitMB: int64(cfg.SandboxMemoryMB),
			CPUShares:     int64(cfg.SandboxCPUShares),
			DefaultLimit:  cfg.ExecutionTimeout,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		registry.Register("python", runner)
	default:
		registry.Register("python", sandbox.NewPythonRunner(sandbox.PythonConfig{
			Interpreter:   cfg.PythonBin,
			WorkspaceRoot: cfg.WorkspaceRoot,
			DefaultLimit:  cfg.ExecutionTimeout,
			Logger:        logger,
		}))
	}

	return registry, nil
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
