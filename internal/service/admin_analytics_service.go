package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/izumi-lms/izumi-api/internal/dto"
	"github.com/izumi-lms/izumi-api/internal/observability"
	"github.com/izumi-lms/izumi-api/internal/repository"
)

const (
	analyticsCacheKey   = "izumi:analytics:summary"
	analyticsTopCourses = 5
	failedLoginLookback = 24 * time.Hour
	defaultAnalyticsTTL = 5 * time.Minute
)

// AdminAnalyticsService aggregates analytics for the admin dashboard.
type AdminAnalyticsService interface {
	GetSummary(ctx context.Context) (dto.AdminAnalyticsResponse, error)
}

type adminAnalyticsService struct {
	repo     repository.AdminAnalyticsRepository
	audits   repository.LoginAuditRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewAdminAnalyticsService constructs the analytics service. cache may be nil.
func NewAdminAnalyticsService(repo repository.AdminAnalyticsRepository, audits repository.LoginAuditRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) AdminAnalyticsService {
	if ttl <= 0 {
		ttl = defaultAnalyticsTTL
	}
	return &adminAnalyticsService{
		repo:     repo,
		audits:   audits,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "admin_analytics_service").Logger(),
		now:      time.Now,
	}
}

func (s *adminAnalyticsService) GetSummary(ctx context.Context) (dto.AdminAnalyticsResponse, error) {
	tracer := otel.Tracer("github.com/izumi-lms/izumi-api/internal/service/admin_analytics")
	ctx, span := tracer.Start(ctx, "analytics.aggregate")
	span.SetAttributes(attribute.String("analytics.cache_key", analyticsCacheKey))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, analyticsCacheKey).Result()
		if err == nil {
			var response dto.AdminAnalyticsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("analytics.cache_hit", true))
				observability.CacheLookups().WithLabelValues("analytics", "hit").Inc()
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read analytics cache")
			span.RecordError(err)
		}
		observability.CacheLookups().WithLabelValues("analytics", "miss").Inc()
	}

	fail := func(err error, status string) (dto.AdminAnalyticsResponse, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		return dto.AdminAnalyticsResponse{}, err
	}

	usersByRole, err := s.repo.CountUsersByRole(ctx)
	if err != nil {
		return fail(err, "count_users_failed")
	}
	coursesByStatus, err := s.repo.CountCoursesByStatus(ctx)
	if err != nil {
		return fail(err, "count_courses_failed")
	}
	totals, err := s.repo.EnrollmentTotals(ctx)
	if err != nil {
		return fail(err, "enrollment_totals_failed")
	}
	top, err := s.repo.TopCourses(ctx, analyticsTopCourses)
	if err != nil {
		return fail(err, "top_courses_failed")
	}

	now := s.now().UTC()
	var failedLogins int64
	if s.audits != nil {
		failedLogins, err = s.audits.CountSince(ctx, now.Add(-failedLoginLookback))
		if err != nil {
			return fail(err, "count_failed_logins_failed")
		}
	}

	summary := buildSummary(usersByRole, coursesByStatus, totals, top, failedLogins, now)
	span.SetAttributes(
		attribute.Int64("analytics.enrollments", totals.Total),
		attribute.Int("analytics.top_courses", len(top)),
	)

	if s.cache != nil {
		payload, err := json.Marshal(summary)
		if err == nil {
			if err := s.cache.Set(ctx, analyticsCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store analytics cache")
				span.RecordError(err)
			}
		}
	}

	return summary, nil
}

func buildSummary(usersByRole, coursesByStatus map[string]int64, totals repository.EnrollmentTotals, top []repository.CourseEnrollmentStat, failedLogins int64, now time.Time) dto.AdminAnalyticsResponse {
	stats := make([]dto.CourseStat, 0, len(top))
	for _, course := range top {
		stats = append(stats, dto.CourseStat{
			CourseID:    course.CourseID,
			Title:       course.Title,
			Enrollments: course.EnrollmentCount,
			Completed:   course.Completed,
			AvgProgress: course.AvgProgress,
		})
	}

	summary := dto.AdminAnalyticsResponse{
		UsersByRole:          usersByRole,
		CoursesByStatus:      coursesByStatus,
		Enrollments:          totals.Total,
		CompletedEnrollments: totals.Completed,
		AverageProgress:      totals.AverageProgress,
		FailedLogins24h:      failedLogins,
		TopCourses:           stats,
		GeneratedAt:          now,
	}
	if totals.Total > 0 {
		summary.CompletionRate = float64(totals.Completed) * 100 / float64(totals.Total)
	}
	return summary
}
