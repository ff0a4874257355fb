package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/izumi-lms/izumi-api/internal/dto"
	"github.com/izumi-lms/izumi-api/internal/models"
	"github.com/izumi-lms/izumi-api/internal/repository"
)

type questionFixture struct {
	questions  QuestionService
	courseID   uint
	instructor Actor
	student    Actor
	classmate  Actor
	outsider   Actor
	admin      Actor
}

func newQuestionFixture(t *testing.T) questionFixture {
	t.Helper()
	db := newTestDB(t)
	ctx := context.Background()

	courses := newTestCourseService(t, db, nil)
	instructor := createUser(t, db, "Teacher", models.RoleInstructor)
	course := publishedCourse(t, courses, instructor, 2, 0)

	enrollments := repository.NewEnrollmentRepository(db)
	enroll := func(user models.User) Actor {
		require.NoError(t, enrollments.Create(ctx, &models.Enrollment{StudentID: user.ID, CourseID: course.ID}))
		return Actor{ID: user.ID, Role: user.Role}
	}

	outsider := createUser(t, db, "Outsider", models.RoleStudent)
	admin := createUser(t, db, "Root", models.RoleAdmin)

	return questionFixture{
		questions:  NewQuestionService(repository.NewQuestionRepository(db), repository.NewCourseRepository(db), enrollments, testValidator(), testLogger()),
		courseID:   course.ID,
		instructor: Actor{ID: instructor.ID, Role: instructor.Role},
		student:    enroll(createUser(t, db, "Asker", models.RoleStudent)),
		classmate:  enroll(createUser(t, db, "Helper", models.RoleStudent)),
		outsider:   Actor{ID: outsider.ID, Role: outsider.Role},
		admin:      Actor{ID: admin.ID, Role: admin.Role},
	}
}

func TestQuestionLifecycle(t *testing.T) {
	f := newQuestionFixture(t)
	ctx := context.Background()

	question, err := f.questions.Ask(ctx, f.student, f.courseID, dto.QuestionCreateRequest{
		Title:    "Why <script>alert(1)</script>goroutines?",
		Body:     "<p>Body</p><img src=x onerror=alert(1)>",
		ModuleID: "lesson-1",
	})
	require.NoError(t, err)
	require.NotContains(t, question.Title, "script")
	require.NotContains(t, question.Body, "onerror")

	answer, err := f.questions.Answer(ctx, f.classmate, question.ID, dto.AnswerCreateRequest{Body: "Because they are cheap."})
	require.NoError(t, err)
	require.False(t, answer.Accepted)

	_, err = f.questions.Accept(ctx, f.classmate, question.ID, answer.ID)
	require.ErrorIs(t, err, ErrForbidden)

	accepted, err := f.questions.Accept(ctx, f.student, question.ID, answer.ID)
	require.NoError(t, err)
	require.NotNil(t, accepted.AcceptedAnswerID)
	require.Equal(t, answer.ID, *accepted.AcceptedAnswerID)

	loaded, err := f.questions.Get(ctx, f.instructor, question.ID)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.AnswerCount)
	require.True(t, loaded.Answers[0].Accepted)

	listing, err := f.questions.List(ctx, f.classmate, f.courseID, dto.QuestionListRequest{Page: 1})
	require.NoError(t, err)
	require.Len(t, listing.Items, 1)
	require.Equal(t, int64(1), listing.Pagination.TotalItems)

	require.ErrorIs(t, f.questions.Delete(ctx, f.classmate, question.ID), ErrForbidden)
	require.NoError(t, f.questions.Delete(ctx, f.instructor, question.ID))
	_, err = f.questions.Get(ctx, f.student, question.ID)
	require.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestQuestionAccessRequiresEnrollmentOrOwnership(t *testing.T) {
	f := newQuestionFixture(t)
	ctx := context.Background()

	_, err := f.questions.Ask(ctx, f.outsider, f.courseID, dto.QuestionCreateRequest{Title: "Let me in"})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.questions.List(ctx, f.outsider, f.courseID, dto.QuestionListRequest{})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.questions.Ask(ctx, f.student, 999, dto.QuestionCreateRequest{Title: "Missing course"})
	require.ErrorIs(t, err, ErrCourseNotFound)
	_, err = f.questions.Ask(ctx, f.student, f.courseID, dto.QuestionCreateRequest{Title: "Unknown module", ModuleID: "nope"})
	require.ErrorIs(t, err, ErrModuleNotFound)

	question, err := f.questions.Ask(ctx, f.instructor, f.courseID, dto.QuestionCreateRequest{Title: "Announcement"})
	require.NoError(t, err)

	_, err = f.questions.Answer(ctx, f.outsider, question.ID, dto.AnswerCreateRequest{Body: "hi"})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.questions.Answer(ctx, f.student, question.ID, dto.AnswerCreateRequest{Body: "<script></script>"})
	require.Error(t, err)

	require.NoError(t, f.questions.Delete(ctx, f.admin, question.ID))
}

func TestQuestionAcceptRejectsForeignAnswer(t *testing.T) {
	f := newQuestionFixture(t)
	ctx := context.Background()

	first, err := f.questions.Ask(ctx, f.student, f.courseID, dto.QuestionCreateRequest{Title: "First question"})
	require.NoError(t, err)
	second, err := f.questions.Ask(ctx, f.student, f.courseID, dto.QuestionCreateRequest{Title: "Second question"})
	require.NoError(t, err)

	answer, err := f.questions.Answer(ctx, f.classmate, second.ID, dto.AnswerCreateRequest{Body: "Answer to second"})
	require.NoError(t, err)

	_, err = f.questions.Accept(ctx, f.student, first.ID, answer.ID)
	require.ErrorIs(t, err, ErrQuestionNotFound)
	_, err = f.questions.Accept(ctx, f.student, first.ID, 999)
	require.ErrorIs(t, err, ErrQuestionNotFound)
}
