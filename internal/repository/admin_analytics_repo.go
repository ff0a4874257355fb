package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/izumi-lms/izumi-api/internal/models"
)

// EnrollmentTotals aggregates every progress record on the platform.
type EnrollmentTotals struct {
	Total           int64
	Completed       int64
	AverageProgress float64
}

// CourseEnrollmentStat aggregates progress records of one course.
type CourseEnrollmentStat struct {
	CourseID        uint
	Title           string
	EnrollmentCount int64
	Completed       int64
	AvgProgress     float64
}

// AdminAnalyticsRepository supplies data for administrator dashboards.
type AdminAnalyticsRepository interface {
	CountUsersByRole(ctx context.Context) (map[string]int64, error)
	CountCoursesByStatus(ctx context.Context) (map[string]int64, error)
	EnrollmentTotals(ctx context.Context) (EnrollmentTotals, error)
	TopCourses(ctx context.Context, limit int) ([]CourseEnrollmentStat, error)
}

type adminAnalyticsRepository struct {
	db *gorm.DB
}

// NewAdminAnalyticsRepository constructs the analytics repository.
func NewAdminAnalyticsRepository(db *gorm.DB) AdminAnalyticsRepository {
	return &adminAnalyticsRepository{db: db}
}

type labelCount struct {
	Label string
	Total int64
}

func (r *adminAnalyticsRepository) countBy(ctx context.Context, model interface{}, column string) (map[string]int64, error) {
	var rows []labelCount
	err := r.db.WithContext(ctx).
		Model(model).
		Select(column + " AS label, COUNT(*) AS total").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Label] = row.Total
	}
	return out, nil
}

func (r *adminAnalyticsRepository) CountUsersByRole(ctx context.Context) (map[string]int64, error) {
	return r.countBy(ctx, &models.User{}, "role")
}

func (r *adminAnalyticsRepository) CountCoursesByStatus(ctx context.Context) (map[string]int64, error) {
	return r.countBy(ctx, &models.Course{}, "status")
}

func (r *adminAnalyticsRepository) EnrollmentTotals(ctx context.Context) (EnrollmentTotals, error) {
	var totals EnrollmentTotals
	err := r.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN completion_status = ? THEN 1 ELSE 0 END), 0) AS completed, COALESCE(AVG(completion_percentage), 0) AS average_progress", models.CompletionCompleted).
		Scan(&totals).Error
	return totals, err
}

func (r *adminAnalyticsRepository) TopCourses(ctx context.Context, limit int) ([]CourseEnrollmentStat, error) {
	if limit <= 0 {
		limit = 5
	}
	var stats []CourseEnrollmentStat
	err := r.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Select("enrollments.course_id AS course_id, courses.title AS title, COUNT(*) AS enrollment_count, COALESCE(SUM(CASE WHEN enrollments.completion_status = ? THEN 1 ELSE 0 END), 0) AS completed, COALESCE(AVG(enrollments.completion_percentage), 0) AS avg_progress", models.CompletionCompleted).
		Joins("JOIN courses ON courses.id = enrollments.course_id").
		Group("enrollments.course_id, courses.title").
		Order("enrollment_count DESC").
		Order("enrollments.course_id ASC").
		Limit(limit).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}
