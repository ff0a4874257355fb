package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/izumi-lms/izumi-api/internal/models"
)

// ErrStaleEnrollment is returned when a progress write lost a concurrent update.
var ErrStaleEnrollment = errors.New("enrollment was modified concurrently")

// EnrollmentRepository persists progress records.
type EnrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Get(ctx context.Context, studentID, courseID uint) (models.Enrollment, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.Enrollment, error)
	ListByCourse(ctx context.Context, courseID uint) ([]models.Enrollment, error)
	SaveProgress(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, studentID, courseID uint) error
}

type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository constructs a GORM-backed enrollment repository.
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.Version == 0 {
		enrollment.Version = 1
	}
	return r.db.WithContext(ctx).Omit("Course").Create(enrollment).Error
}

func (r *enrollmentRepository) Get(ctx context.Context, studentID, courseID uint) (models.Enrollment, error) {
	var enrollment models.Enrollment
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&enrollment).Error
	if err != nil {
		return models.Enrollment{}, err
	}
	return enrollment, nil
}

func (r *enrollmentRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("student_id = ?", studentID).
		Order("updated_at DESC").
		Order("id DESC").
		Find(&enrollments).Error
	if err != nil {
		return nil, err
	}
	return enrollments, nil
}

func (r *enrollmentRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("completion_percentage DESC").
		Order("id ASC").
		Find(&enrollments).Error
	if err != nil {
		return nil, err
	}
	return enrollments, nil
}

// SaveProgress writes the derived and per-module fields of enrollment only if
// the stored version still matches, and bumps the version on success.
func (r *enrollmentRepository) SaveProgress(ctx context.Context, enrollment *models.Enrollment) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("id = ? AND version = ?", enrollment.ID, enrollment.Version).
		Updates(map[string]interface{}{
			"modules_status":        enrollment.ModulesStatus,
			"completion_status":     enrollment.CompletionStatus,
			"completion_percentage": enrollment.CompletionPercentage,
			"module_snapshot_count": enrollment.ModuleSnapshotCount,
			"completed_at":          enrollment.CompletedAt,
			"version":               enrollment.Version + 1,
			"updated_at":            now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleEnrollment
	}

	enrollment.Version++
	enrollment.UpdatedAt = now
	return nil
}

func (r *enrollmentRepository) Delete(ctx context.Context, studentID, courseID uint) error {
	result := r.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Delete(&models.Enrollment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
