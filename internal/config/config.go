package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the judge API service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	JWTSecret   string

	// Sandbox knobs.
	SandboxBackend   string // "process" or "docker"
	PythonBin        string
	DockerHost       string
	DockerImage      string
	WorkspaceRoot    string
	ExecutionTimeout time.Duration
	SandboxMemoryMB  int
	SandboxCPUShares int

	// Statistics cache.
	StatsCacheTTL time.Duration

	// Rate limit for the ad-hoc execute endpoint, requests per minute.
	ExecuteRateLimit int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and an
// optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("QUIZJUDGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "QuizJudge API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("sandbox.backend", "process")
	v.SetDefault("sandbox.python_bin", "python3")
	v.SetDefault("sandbox.docker_image", "python:3.11-alpine")
	v.SetDefault("sandbox.memory_mb", 128)
	v.SetDefault("sandbox.cpu_shares", 512)
	v.SetDefault("execution_timeout_ms", 5000)
	v.SetDefault("stats.cache_ttl", "1m")
	v.SetDefault("execute.rate_limit", 10)

	ttlString := v.GetString("stats.cache_ttl")
	if ttlString == "" {
		ttlString = "1m"
	}
	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid stats cache ttl: %w", err)
	}

	timeoutMs := v.GetInt("execution_timeout_ms")
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		SandboxBackend:   strings.ToLower(v.GetString("sandbox.backend")),
		PythonBin:        v.GetString("sandbox.python_bin"),
		DockerHost:       v.GetString("sandbox.docker_host"),
		DockerImage:      v.GetString("sandbox.docker_image"),
		WorkspaceRoot:    v.GetString("sandbox.workspace_root"),
		ExecutionTimeout: time.Duration(timeoutMs) * time.Millisecond,
		SandboxMemoryMB:  v.GetInt("sandbox.memory_mb"),
		SandboxCPUShares: v.GetInt("sandbox.cpu_shares"),
		StatsCacheTTL:    ttl,
		ExecuteRateLimit: v.GetInt("execute.rate_limit"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.SandboxBackend != "process" && cfg.SandboxBackend != "docker" {
		return Config{}, fmt.Errorf("unknown sandbox backend %q", cfg.SandboxBackend)
	}

	if cfg.ExecuteRateLimit <= 0 {
		cfg.ExecuteRateLimit = 10
	}

	return cfg, nil
}
