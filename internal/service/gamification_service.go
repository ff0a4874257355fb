package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/izumi-lms/izumi-api/internal/dto"
	"github.com/izumi-lms/izumi-api/internal/models"
	"github.com/izumi-lms/izumi-api/internal/observability"
	"github.com/izumi-lms/izumi-api/internal/repository"
)

// Point values and level sizing.
const (
	PointsModuleCompleted = 10
	PointsQuizExcellence  = 5
	PointsCourseCompleted = 100
	PointsPerLevel        = 250
	QuizExcellenceScore   = 90.0

	defaultLeaderboardKey   = "izumi:leaderboard"
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// GamificationService awards points and exposes profiles and the leaderboard.
type GamificationService interface {
	ProgressRewarder
	Profile(ctx context.Context, userID uint) (dto.GamificationProfileResponse, error)
	Leaderboard(ctx context.Context, limit int) ([]dto.LeaderboardEntry, error)
	SyncLeaderboard(ctx context.Context) error
}

type gamificationService struct {
	repo           repository.PointsRepository
	redis          *redis.Client
	leaderboardKey string
	logger         zerolog.Logger
}

// NewGamificationService constructs the gamification service. A nil redis
// client serves the leaderboard from the database.
func NewGamificationService(repo repository.PointsRepository, redisClient *redis.Client, leaderboardKey string, logger zerolog.Logger) GamificationService {
	if leaderboardKey == "" {
		leaderboardKey = defaultLeaderboardKey
	}
	return &gamificationService{
		repo:           repo,
		redis:          redisClient,
		leaderboardKey: leaderboardKey,
		logger:         logger.With().Str("component", "gamification_service").Logger(),
	}
}

// LevelFor returns the level reached with points.
func LevelFor(points int) int {
	if points < 0 {
		points = 0
	}
	return 1 + points/PointsPerLevel
}

func (s *gamificationService) ModuleCompleted(ctx context.Context, userID, courseID uint, moduleID string) {
	s.award(ctx, models.PointEvent{
		UserID:   userID,
		CourseID: courseID,
		ModuleID: moduleID,
		Reason:   models.PointReasonModuleCompleted,
		Points:   PointsModuleCompleted,
	}, models.BadgeFirstSteps)
}

func (s *gamificationService) QuizExcellence(ctx context.Context, userID, courseID uint, moduleID string, score float64) {
	if score < QuizExcellenceScore {
		return
	}
	s.award(ctx, models.PointEvent{
		UserID:   userID,
		CourseID: courseID,
		ModuleID: moduleID,
		Reason:   models.PointReasonQuizExcellence,
		Points:   PointsQuizExcellence,
	}, models.BadgeQuizAce)
}

func (s *gamificationService) CourseCompleted(ctx context.Context, userID, courseID uint) {
	s.award(ctx, models.PointEvent{
		UserID:   userID,
		CourseID: courseID,
		Reason:   models.PointReasonCourseCompleted,
		Points:   PointsCourseCompleted,
	}, models.BadgeGraduate)
}

// award never fails the caller; progress writes are already committed.
func (s *gamificationService) award(ctx context.Context, event models.PointEvent, badge string) {
	balance, awarded, err := s.repo.Award(ctx, &event, badge)
	if err != nil {
		s.logger.Warn().Err(err).Uint("user_id", event.UserID).Str("reason", event.Reason).Msg("failed to award points")
		return
	}
	if !awarded {
		return
	}

	observability.PointsAwarded().WithLabelValues(event.Reason).Add(float64(event.Points))
	s.logger.Debug().Uint("user_id", event.UserID).Str("reason", event.Reason).Int("points", balance.Points).Msg("points awarded")

	if s.redis == nil {
		return
	}
	member := strconv.FormatUint(uint64(balance.UserID), 10)
	if err := s.redis.ZAdd(ctx, s.leaderboardKey, redis.Z{Score: float64(balance.Points), Member: member}).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", s.leaderboardKey).Msg("failed to update leaderboard")
	}
}

func (s *gamificationService) Profile(ctx context.Context, userID uint) (dto.GamificationProfileResponse, error) {
	balance, err := s.repo.Get(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.GamificationProfileResponse{}, err
	}

	badges := []string(balance.Badges)
	if badges == nil {
		badges = []string{}
	}
	level := LevelFor(balance.Points)

	return dto.GamificationProfileResponse{
		UserID:    userID,
		Points:    balance.Points,
		Level:     level,
		NextLevel: level * PointsPerLevel,
		Badges:    badges,
		UpdatedAt: balance.UpdatedAt,
	}, nil
}

func (s *gamificationService) Leaderboard(ctx context.Context, limit int) ([]dto.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	if entries, ok := s.leaderboardFromRedis(ctx, limit); ok {
		return entries, nil
	}

	balances, err := s.repo.Top(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]dto.LeaderboardEntry, 0, len(balances))
	for i, balance := range balances {
		entries = append(entries, dto.LeaderboardEntry{
			Rank:   i + 1,
			UserID: balance.UserID,
			Points: balance.Points,
			Level:  LevelFor(balance.Points),
		})
	}

	s.warmLeaderboard(ctx, balances)
	return entries, nil
}

// SyncLeaderboard seeds the sorted set from the database balances.
func (s *gamificationService) SyncLeaderboard(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	balances, err := s.repo.Top(ctx, maxLeaderboardLimit)
	if err != nil {
		return err
	}
	s.warmLeaderboard(ctx, balances)
	return nil
}

func (s *gamificationService) leaderboardFromRedis(ctx context.Context, limit int) ([]dto.LeaderboardEntry, bool) {
	if s.redis == nil {
		return nil, false
	}

	members, err := s.redis.ZRevRangeWithScores(ctx, s.leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		s.logger.Warn().Err(err).Str("key", s.leaderboardKey).Msg("leaderboard read failed, using database")
		observability.CacheLookups().WithLabelValues("leaderboard", "error").Inc()
		return nil, false
	}
	if len(members) == 0 {
		observability.CacheLookups().WithLabelValues("leaderboard", "miss").Inc()
		return nil, false
	}

	entries := make([]dto.LeaderboardEntry, 0, len(members))
	for _, member := range members {
		raw, ok := member.Member.(string)
		if !ok {
			continue
		}
		userID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			continue
		}
		points := int(member.Score)
		entries = append(entries, dto.LeaderboardEntry{
			Rank:   len(entries) + 1,
			UserID: uint(userID),
			Points: points,
			Level:  LevelFor(points),
		})
	}

	observability.CacheLookups().WithLabelValues("leaderboard", "hit").Inc()
	return entries, true
}

func (s *gamificationService) warmLeaderboard(ctx context.Context, balances []models.UserPoints) {
	if s.redis == nil || len(balances) == 0 {
		return
	}

	members := make([]redis.Z, 0, len(balances))
	for _, balance := range balances {
		members = append(members, redis.Z{Score: float64(balance.Points), Member: strconv.FormatUint(uint64(balance.UserID), 10)})
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.redis.ZAdd(ctx, s.leaderboardKey, members...).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", s.leaderboardKey).Msg("failed to warm leaderboard")
	}
}
