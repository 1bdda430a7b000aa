package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/edualab/quizjudge-api/internal/models"
)

func TestStatisticsRepositoryQuestionStatsRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStatisticsRepository(db)
	ctx := context.Background()

	_, err := repo.GetQuestionStatsLocked(ctx, 1, 2)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	bestTime := 0.42
	now := time.Now()
	stats := models.QuestionStatistics{
		UserID:              1,
		QuestionID:          2,
		TotalSubmissions:    1,
		AcceptedSubmissions: 1,
		BestTime:            &bestTime,
		BestScore:           100,
		FirstAcceptedAt:     &now,
		LastSubmittedAt:     now,
	}
	require.NoError(t, repo.SaveQuestionStats(ctx, &stats))

	got, err := repo.GetQuestionStats(ctx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, 1, got.TotalSubmissions)
	require.NotNil(t, got.BestTime)
	require.InDelta(t, 0.42, *got.BestTime, 0.001)
	require.NotNil(t, got.FirstAcceptedAt)

	got.TotalSubmissions = 2
	require.NoError(t, repo.SaveQuestionStats(ctx, &got))

	again, err := repo.GetQuestionStatsLocked(ctx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, 2, again.TotalSubmissions)
}

func TestStatisticsRepositoryUpsertUserStats(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStatisticsRepository(db)
	ctx := context.Background()

	first := models.UserStatistics{
		UserID:              9,
		TotalSubmissions:    1,
		AcceptedSubmissions: 0,
		TotalScore:          50,
		AverageScore:        50,
		AcceptanceRate:      0,
	}
	require.NoError(t, repo.UpsertUserStats(ctx, &first))

	replacement := models.UserStatistics{
		UserID:              9,
		TotalSubmissions:    2,
		AcceptedSubmissions: 1,
		SolvedQuestions:     1,
		TotalScore:          150,
		AverageScore:        75,
		AcceptanceRate:      0.5,
	}
	require.NoError(t, repo.UpsertUserStats(ctx, &replacement))

	got, err := repo.GetUserStats(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, 2, got.TotalSubmissions)
	require.Equal(t, 1, got.SolvedQuestions)
	require.InDelta(t, 0.5, got.AcceptanceRate, 0.001)

	var count int64
	require.NoError(t, db.Model(&models.UserStatistics{}).Where("user_id = ?", 9).Count(&count).Error)
	require.Equal(t, int64(1), count, "upsert must not duplicate rows")
}
