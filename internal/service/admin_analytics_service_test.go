package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/izumi-lms/izumi-api/internal/dto"
	"github.com/izumi-lms/izumi-api/internal/models"
	"github.com/izumi-lms/izumi-api/internal/repository"
)

func TestAdminAnalyticsSummaryAndCache(t *testing.T) {
	db := newTestDB(t)
	server, cache := newTestRedis(t)
	ctx := context.Background()

	courses := newTestCourseService(t, db, nil)
	instructor := createUser(t, db, "Teacher", models.RoleInstructor)
	course := publishedCourse(t, courses, instructor, 2, 0)
	_, err := courses.Create(ctx, Actor{ID: instructor.ID, Role: instructor.Role}, dto.CourseCreateRequest{Title: "Draft course"})
	require.NoError(t, err)

	enrollments := repository.NewEnrollmentRepository(db)
	for i, row := range []struct {
		name   string
		status models.CompletionStatus
		pct    float64
	}{
		{"Ana", models.CompletionCompleted, 100},
		{"Bo", models.CompletionInProgress, 50},
	} {
		student := createUser(t, db, row.name, models.RoleStudent)
		require.NoError(t, enrollments.Create(ctx, &models.Enrollment{
			StudentID:            student.ID,
			CourseID:             course.ID,
			CompletionStatus:     row.status,
			CompletionPercentage: row.pct,
		}), "enrollment %d", i)
	}

	audits := repository.NewLoginAuditRepository(db)
	require.NoError(t, audits.Create(ctx, &models.LoginAudit{Email: "ana@izumi.test", Role: models.RoleStudent, Reason: "invalid_credentials"}))

	svc := NewAdminAnalyticsService(repository.NewAdminAnalyticsRepository(db), audits, cache, 0, testLogger())

	summary, err := svc.GetSummary(ctx)
	require.NoError(t, err)
	require.False(t, summary.CacheHit)
	require.Equal(t, int64(2), summary.UsersByRole[models.RoleStudent])
	require.Equal(t, int64(1), summary.UsersByRole[models.RoleInstructor])
	require.Equal(t, int64(1), summary.CoursesByStatus[models.CourseStatusPublished])
	require.Equal(t, int64(1), summary.CoursesByStatus[models.CourseStatusDraft])
	require.Equal(t, int64(2), summary.Enrollments)
	require.Equal(t, int64(1), summary.CompletedEnrollments)
	require.InDelta(t, 50.0, summary.CompletionRate, 0.001)
	require.InDelta(t, 75.0, summary.AverageProgress, 0.001)
	require.Equal(t, int64(1), summary.FailedLogins24h)
	require.Len(t, summary.TopCourses, 1)
	require.Equal(t, course.ID, summary.TopCourses[0].CourseID)
	require.Equal(t, int64(2), summary.TopCourses[0].Enrollments)

	require.True(t, server.Exists(analyticsCacheKey))
	ttl := server.TTL(analyticsCacheKey)
	require.Equal(t, defaultAnalyticsTTL, ttl)

	cached, err := svc.GetSummary(ctx)
	require.NoError(t, err)
	require.True(t, cached.CacheHit)
	require.Equal(t, summary.Enrollments, cached.Enrollments)
}

func TestAdminAnalyticsWithoutCacheOrEnrollments(t *testing.T) {
	db := newTestDB(t)
	svc := NewAdminAnalyticsService(repository.NewAdminAnalyticsRepository(db), nil, nil, 0, testLogger())

	summary, err := svc.GetSummary(context.Background())
	require.NoError(t, err)
	require.Zero(t, summary.Enrollments)
	require.Zero(t, summary.CompletionRate)
	require.Empty(t, summary.TopCourses)
	require.False(t, summary.CacheHit)
}
