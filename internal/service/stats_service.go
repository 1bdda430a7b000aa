package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/edualab/quizjudge-api/internal/dto"
	"github.com/edualab/quizjudge-api/internal/repository"
)

// StatsService reads submission statistics. User aggregates are cached in
// redis and invalidated whenever a submission is recorded.
type StatsService interface {
	UserStats(ctx context.Context, userID uint) (dto.UserStatsResponse, error)
	QuestionStats(ctx context.Context, userID, questionID uint) (dto.QuestionStatsResponse, error)
	InvalidateUser(ctx context.Context, userID uint)
}

type statsService struct {
	stats    repository.StatisticsRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewStatsService constructs a statistics read service. The cache client may
// be nil, which disables caching entirely.
func NewStatsService(statsRepo repository.StatisticsRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) StatsService {
	return &statsService{
		stats:    statsRepo,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "stats_service").Logger(),
	}
}

func userStatsKey(userID uint) string {
	return fmt.Sprintf("stats:user:%d", userID)
}

func (s *statsService) UserStats(ctx context.Context, userID uint) (dto.UserStatsResponse, error) {
	cacheKey := userStatsKey(userID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.UserStatsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read user stats cache")
		}
	}

	stats, err := s.stats.GetUserStats(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// A user with no submissions has an all-zero profile, not an error.
			return dto.UserStatsResponse{UserID: userID}, nil
		}
		return dto.UserStatsResponse{}, err
	}

	response := dto.NewUserStatsResponse(stats)

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to write user stats cache")
			}
		}
	}

	return response, nil
}

func (s *statsService) QuestionStats(ctx context.Context, userID, questionID uint) (dto.QuestionStatsResponse, error) {
	stats, err := s.stats.GetQuestionStats(ctx, userID, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionStatsResponse{QuestionID: questionID}, nil
		}
		return dto.QuestionStatsResponse{}, err
	}

	return dto.NewQuestionStatsResponse(stats), nil
}

func (s *statsService) InvalidateUser(ctx context.Context, userID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, userStatsKey(userID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to invalidate user stats cache")
	}
}
