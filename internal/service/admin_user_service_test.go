package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/izumi-lms/izumi-api/internal/dto"
	"github.com/izumi-lms/izumi-api/internal/models"
	"github.com/izumi-lms/izumi-api/internal/repository"
)

func stringPtr(v string) *string {
	return &v
}

func TestAdminUserUpdateAndSelfProtection(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	activity := NewActivityService(repository.NewActivityLogRepository(db), nil, testLogger())
	svc := NewAdminUserService(repository.NewUserRepository(db), testValidator(), activity, testLogger())

	admin := createUser(t, db, "Root", models.RoleAdmin)
	student := createUser(t, db, "Ana", models.RoleStudent)
	actor := Actor{ID: admin.ID, Role: admin.Role}

	updated, err := svc.Update(ctx, actor, student.ID, dto.AdminUserUpdateRequest{
		Name:   stringPtr("  Ana Maria "),
		Role:   stringPtr(models.RoleInstructor),
		Active: boolPtr(false),
	})
	require.NoError(t, err)
	require.Equal(t, "Ana Maria", updated.Name)
	require.Equal(t, models.RoleInstructor, updated.Role)
	require.False(t, updated.Active)

	_, err = svc.Update(ctx, actor, admin.ID, dto.AdminUserUpdateRequest{Role: stringPtr(models.RoleStudent)})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Update(ctx, actor, admin.ID, dto.AdminUserUpdateRequest{Active: boolPtr(false)})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Update(ctx, actor, 999, dto.AdminUserUpdateRequest{Name: stringPtr("Ghost")})
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = svc.Update(ctx, actor, student.ID, dto.AdminUserUpdateRequest{Role: stringPtr("superuser")})
	require.Error(t, err)

	unchanged, err := svc.Update(ctx, actor, admin.ID, dto.AdminUserUpdateRequest{})
	require.NoError(t, err)
	require.Equal(t, admin.Email, unchanged.Email)

	logs, err := activity.List(ctx, dto.AdminActivityListRequest{Action: "user.updated"})
	require.NoError(t, err)
	require.Len(t, logs.Items, 1)
	require.Equal(t, models.RoleInstructor, logs.Items[0].Metadata["role"])

	listing, err := svc.List(ctx, dto.AdminUserListRequest{Active: boolPtr(false)})
	require.NoError(t, err)
	require.Len(t, listing.Items, 1)
	require.Equal(t, student.ID, listing.Items[0].ID)
}

func TestAdminUserDeleteCascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	activity := NewActivityService(repository.NewActivityLogRepository(db), nil, testLogger())
	users := repository.NewUserRepository(db)
	svc := NewAdminUserService(users, testValidator(), activity, testLogger())

	admin := createUser(t, db, "Root", models.RoleAdmin)
	actor := Actor{ID: admin.ID, Role: admin.Role}
	instructor := createUser(t, db, "Teacher", models.RoleInstructor)
	student := createUser(t, db, "Ana", models.RoleStudent)

	courses := newTestCourseService(t, db, nil)
	course := publishedCourse(t, courses, instructor, 1, 0)
	enrollments := repository.NewEnrollmentRepository(db)
	require.NoError(t, enrollments.Create(ctx, &models.Enrollment{StudentID: student.ID, CourseID: course.ID}))

	require.ErrorIs(t, svc.Delete(ctx, actor, admin.ID), ErrForbidden)
	require.ErrorIs(t, svc.Delete(ctx, actor, 999), ErrUserNotFound)

	require.NoError(t, svc.Delete(ctx, actor, instructor.ID))

	var remainingCourses, remainingEnrollments int64
	require.NoError(t, db.Model(&models.Course{}).Count(&remainingCourses).Error)
	require.NoError(t, db.Model(&models.Enrollment{}).Count(&remainingEnrollments).Error)
	require.Zero(t, remainingCourses)
	require.Zero(t, remainingEnrollments)

	_, err := users.GetByID(ctx, student.ID)
	require.NoError(t, err)

	logs, err := activity.List(ctx, dto.AdminActivityListRequest{Action: "user.deleted"})
	require.NoError(t, err)
	require.Len(t, logs.Items, 1)
}
