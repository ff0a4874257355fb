package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/izumi-lms/izumi-api/internal/database"
	"github.com/izumi-lms/izumi-api/internal/dto"
	"github.com/izumi-lms/izumi-api/internal/models"
	"github.com/izumi-lms/izumi-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func newTestDB(t *testing.T) *gorm.DB {
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

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return server, client
}

func createUser(t *testing.T, db *gorm.DB, name, role string) models.User {
	t.Helper()

	user := models.User{
		Name:         name,
		Email:        strings.ToLower(name) + "@izumi.test",
		Role:         role,
		PasswordHash: "x",
		Active:       true,
	}
	require.NoError(t, repository.NewUserRepository(db).Create(context.Background(), &user))
	return user
}

func newTestCourseService(t *testing.T, db *gorm.DB, cache *redis.Client) CourseService {
	t.Helper()

	content, err := NewModuleContentValidator()
	require.NoError(t, err)
	return NewCourseService(repository.NewCourseRepository(db), content, cache, 0, testValidator(), nil, testLogger())
}

func quizContent(answers ...int) json.RawMessage {
	questions := make([]map[string]interface{}, 0, len(answers))
	for i, answer := range answers {
		questions = append(questions, map[string]interface{}{
			"prompt":  fmt.Sprintf("Question %d", i+1),
			"options": []string{"a", "b", "c"},
			"answer":  answer,
		})
	}
	encoded, _ := json.Marshal(map[string]interface{}{"questions": questions})
	return encoded
}

func lessonContent(body string) json.RawMessage {
	encoded, _ := json.Marshal(map[string]string{"body": body})
	return encoded
}

// publishedCourse creates a published course owned by instructor with the
// given number of lessons and quizzes. Quiz answers are always 0.
func publishedCourse(t *testing.T, courses CourseService, instructor models.User, lessons, quizzes int) dto.CourseResponse {
	t.Helper()
	ctx := context.Background()
	actor := Actor{ID: instructor.ID, Role: instructor.Role}

	course, err := courses.Create(ctx, actor, dto.CourseCreateRequest{Title: "Distributed Systems", Category: "cs"})
	require.NoError(t, err)

	for i := 1; i <= lessons; i++ {
		_, err := courses.AddModule(ctx, actor, course.ID, dto.ModuleCreateRequest{
			ID:      fmt.Sprintf("lesson-%d", i),
			Type:    string(models.ModuleTypeLesson),
			Title:   fmt.Sprintf("Lesson %d", i),
			Content: lessonContent("<p>content</p>"),
		})
		require.NoError(t, err)
	}
	for i := 1; i <= quizzes; i++ {
		_, err := courses.AddModule(ctx, actor, course.ID, dto.ModuleCreateRequest{
			ID:      fmt.Sprintf("quiz-%d", i),
			Type:    string(models.ModuleTypeQuiz),
			Title:   fmt.Sprintf("Quiz %d", i),
			Content: quizContent(0, 0),
		})
		require.NoError(t, err)
	}

	published, err := courses.Publish(ctx, actor, course.ID)
	require.NoError(t, err)
	return published
}

func boolPtr(v bool) *bool {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}

func ptrUint(v uint) *uint {
	return &v
}
