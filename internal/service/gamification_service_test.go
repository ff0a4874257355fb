package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/izumi-lms/izumi-api/internal/models"
	"github.com/izumi-lms/izumi-api/internal/repository"
)

func TestLevelFor(t *testing.T) {
	require.Equal(t, 1, LevelFor(0))
	require.Equal(t, 1, LevelFor(249))
	require.Equal(t, 2, LevelFor(250))
	require.Equal(t, 5, LevelFor(1000))
	require.Equal(t, 1, LevelFor(-10))
}

func TestGamificationAwardsAreIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewGamificationService(repository.NewPointsRepository(db), nil, "", testLogger())
	ctx := context.Background()

	svc.ModuleCompleted(ctx, 7, 1, "intro")
	svc.ModuleCompleted(ctx, 7, 1, "intro")
	svc.ModuleCompleted(ctx, 7, 1, "advanced")
	svc.QuizExcellence(ctx, 7, 1, "quiz", 89.9)
	svc.QuizExcellence(ctx, 7, 1, "quiz", 95)
	svc.QuizExcellence(ctx, 7, 1, "quiz", 100)
	svc.CourseCompleted(ctx, 7, 1)
	svc.CourseCompleted(ctx, 7, 1)

	profile, err := svc.Profile(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, 2*PointsModuleCompleted+PointsQuizExcellence+PointsCourseCompleted, profile.Points)
	require.Equal(t, 1, profile.Level)
	require.Equal(t, PointsPerLevel, profile.NextLevel)
	require.Equal(t, []string{models.BadgeFirstSteps, models.BadgeQuizAce, models.BadgeGraduate}, profile.Badges)

	empty, err := svc.Profile(ctx, 8)
	require.NoError(t, err)
	require.Zero(t, empty.Points)
	require.Equal(t, 1, empty.Level)
	require.NotNil(t, empty.Badges)
}

func TestLeaderboardUsesSortedSet(t *testing.T) {
	db := newTestDB(t)
	_, client := newTestRedis(t)
	svc := NewGamificationService(repository.NewPointsRepository(db), client, "test:leaderboard", testLogger())
	ctx := context.Background()

	svc.CourseCompleted(ctx, 1, 1)
	svc.ModuleCompleted(ctx, 2, 1, "a")
	svc.CourseCompleted(ctx, 2, 1)
	svc.CourseCompleted(ctx, 2, 2)
	svc.ModuleCompleted(ctx, 3, 1, "a")

	score, err := client.ZScore(ctx, "test:leaderboard", "2").Result()
	require.NoError(t, err)
	require.Equal(t, float64(PointsModuleCompleted+2*PointsCourseCompleted), score)

	board, err := svc.Leaderboard(ctx, 2)
	require.NoError(t, err)
	require.Len(t, board, 2)
	require.Equal(t, uint(2), board[0].UserID)
	require.Equal(t, 1, board[0].Rank)
	require.Equal(t, uint(1), board[1].UserID)
	require.Equal(t, 2, board[1].Rank)
}

func TestLeaderboardFallsBackToDatabase(t *testing.T) {
	db := newTestDB(t)
	server, client := newTestRedis(t)
	repo := repository.NewPointsRepository(db)
	ctx := context.Background()

	seed := NewGamificationService(repo, nil, "", testLogger())
	seed.CourseCompleted(ctx, 10, 1)
	seed.ModuleCompleted(ctx, 11, 1, "a")

	svc := NewGamificationService(repo, client, "", testLogger())

	// Empty sorted set: served from the database and warmed.
	board, err := svc.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	require.Equal(t, uint(10), board[0].UserID)
	require.Equal(t, int64(2), client.ZCard(ctx, defaultLeaderboardKey).Val())

	server.Close()
	board, err = svc.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	require.Equal(t, PointsCourseCompleted, board[0].Points)
}

func TestSyncLeaderboardSeedsRedis(t *testing.T) {
	db := newTestDB(t)
	_, client := newTestRedis(t)
	repo := repository.NewPointsRepository(db)
	ctx := context.Background()

	NewGamificationService(repo, nil, "", testLogger()).CourseCompleted(ctx, 5, 1)

	svc := NewGamificationService(repo, client, "", testLogger())
	require.NoError(t, svc.SyncLeaderboard(ctx))
	require.Equal(t, float64(PointsCourseCompleted), client.ZScore(ctx, defaultLeaderboardKey, "5").Val())
}
