package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/izumi-lms/izumi-api/internal/database"
	"github.com/izumi-lms/izumi-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedCourse(t *testing.T, db *gorm.DB, instructorID uint) models.Course {
	t.Helper()
	course := models.Course{Title: "Networks", InstructorID: instructorID, Status: models.CourseStatusPublished}
	require.NoError(t, db.Create(&course).Error)
	return course
}

func TestEnrollmentSaveProgressRejectsStaleVersion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEnrollmentRepository(db)
	ctx := context.Background()
	course := seedCourse(t, db, 1)

	enrollment := models.Enrollment{StudentID: 2, CourseID: course.ID}
	require.NoError(t, repo.Create(ctx, &enrollment))
	require.Equal(t, 1, enrollment.Version)

	stale := enrollment

	enrollment.CompletionPercentage = 50
	enrollment.ModulesStatus = []models.ModuleStatus{{ModuleID: "a", Completed: true}}
	require.NoError(t, repo.SaveProgress(ctx, &enrollment))
	require.Equal(t, 2, enrollment.Version)

	stale.CompletionPercentage = 10
	require.ErrorIs(t, repo.SaveProgress(ctx, &stale), ErrStaleEnrollment)

	stored, err := repo.Get(ctx, 2, course.ID)
	require.NoError(t, err)
	require.Equal(t, 50.0, stored.CompletionPercentage)
	require.Equal(t, 2, stored.Version)
	require.Len(t, stored.ModulesStatus, 1)
	require.Equal(t, course.Title, stored.Course.Title)
}

func TestEnrollmentCreateRejectsDuplicates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEnrollmentRepository(db)
	ctx := context.Background()
	course := seedCourse(t, db, 1)

	require.NoError(t, repo.Create(ctx, &models.Enrollment{StudentID: 2, CourseID: course.ID}))
	err := repo.Create(ctx, &models.Enrollment{StudentID: 2, CourseID: course.ID})
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	require.NoError(t, repo.Delete(ctx, 2, course.ID))
	require.ErrorIs(t, repo.Delete(ctx, 2, course.ID), gorm.ErrRecordNotFound)
}

func TestPointsAwardIsRecordedOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPointsRepository(db)
	ctx := context.Background()

	event := func() *models.PointEvent {
		return &models.PointEvent{UserID: 4, CourseID: 1, ModuleID: "m1", Reason: models.PointReasonModuleCompleted, Points: 10}
	}

	balance, awarded, err := repo.Award(ctx, event(), models.BadgeFirstSteps)
	require.NoError(t, err)
	require.True(t, awarded)
	require.Equal(t, 10, balance.Points)
	require.Equal(t, []string{models.BadgeFirstSteps}, []string(balance.Badges))

	balance, awarded, err = repo.Award(ctx, event(), models.BadgeFirstSteps)
	require.NoError(t, err)
	require.False(t, awarded)
	require.Equal(t, 10, balance.Points)

	_, awarded, err = repo.Award(ctx, &models.PointEvent{UserID: 4, CourseID: 1, Reason: models.PointReasonCourseCompleted, Points: 100}, models.BadgeGraduate)
	require.NoError(t, err)
	require.True(t, awarded)

	stored, err := repo.Get(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, 110, stored.Points)
	require.Len(t, stored.Badges, 2)

	_, _, err = repo.Award(ctx, &models.PointEvent{UserID: 5, CourseID: 1, Reason: models.PointReasonCourseCompleted, Points: 100}, "")
	require.NoError(t, err)

	top, err := repo.Top(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, uint(4), top[0].UserID)
	require.Equal(t, uint(5), top[1].UserID)
}

func TestQuestionDeleteRemovesAnswers(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuestionRepository(db)
	ctx := context.Background()
	course := seedCourse(t, db, 1)

	question := models.CourseQuestion{CourseID: course.ID, AuthorID: 2, Title: "How?"}
	require.NoError(t, repo.Create(ctx, &question))
	answer := models.CourseAnswer{QuestionID: question.ID, AuthorID: 1, Body: "Like this"}
	require.NoError(t, repo.CreateAnswer(ctx, &answer))
	require.NoError(t, repo.AcceptAnswer(ctx, question.ID, answer.ID))

	loaded, err := repo.Get(ctx, question.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Answers, 1)
	require.Equal(t, answer.ID, *loaded.AcceptedAnswerID)

	require.NoError(t, repo.Delete(ctx, question.ID))
	require.ErrorIs(t, repo.Delete(ctx, question.ID), gorm.ErrRecordNotFound)

	var answers int64
	require.NoError(t, db.Model(&models.CourseAnswer{}).Count(&answers).Error)
	require.Zero(t, answers)
}
