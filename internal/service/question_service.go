package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/izumi-lms/izumi-api/internal/dto"
	"github.com/izumi-lms/izumi-api/internal/models"
	"github.com/izumi-lms/izumi-api/internal/repository"
)

// QuestionService exposes course Q&A use-cases.
type QuestionService interface {
	List(ctx context.Context, actor Actor, courseID uint, req dto.QuestionListRequest) (dto.QuestionListResponse, error)
	Get(ctx context.Context, actor Actor, questionID uint) (dto.QuestionResponse, error)
	Ask(ctx context.Context, actor Actor, courseID uint, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error)
	Answer(ctx context.Context, actor Actor, questionID uint, payload dto.AnswerCreateRequest) (dto.AnswerResponse, error)
	Accept(ctx context.Context, actor Actor, questionID, answerID uint) (dto.QuestionResponse, error)
	Delete(ctx context.Context, actor Actor, questionID uint) error
}

type questionService struct {
	questions   repository.QuestionRepository
	courses     repository.CourseRepository
	enrollments repository.EnrollmentRepository
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	now         func() time.Time
}

// NewQuestionService constructs the Q&A service.
func NewQuestionService(questions repository.QuestionRepository, courses repository.CourseRepository, enrollments repository.EnrollmentRepository, validate *validator.Validate, logger zerolog.Logger) QuestionService {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("br")

	return &questionService{
		questions:   questions,
		courses:     courses,
		enrollments: enrollments,
		validator:   validate,
		logger:      logger.With().Str("component", "question_service").Logger(),
		tracer:      otel.Tracer("github.com/izumi-lms/izumi-api/internal/service/question"),
		sanitizer:   policy,
		now:         time.Now,
	}
}

func (s *questionService) List(ctx context.Context, actor Actor, courseID uint, req dto.QuestionListRequest) (dto.QuestionListResponse, error) {
	if _, err := s.authorizeCourse(ctx, actor, courseID); err != nil {
		return dto.QuestionListResponse{}, err
	}

	page := maxInt(req.Page, 1)
	size := clampPageSize(req.PageSize)
	questions, total, err := s.questions.ListByCourse(ctx, courseID, size, (page-1)*size)
	if err != nil {
		return dto.QuestionListResponse{}, err
	}

	return dto.QuestionListResponse{
		Items:      dto.NewQuestionResponseSlice(questions),
		Pagination: paginationMeta(page, size, total),
	}, nil
}

func (s *questionService) Get(ctx context.Context, actor Actor, questionID uint) (dto.QuestionResponse, error) {
	question, _, err := s.loadAuthorized(ctx, actor, questionID)
	if err != nil {
		return dto.QuestionResponse{}, err
	}
	return dto.NewQuestionResponse(question), nil
}

func (s *questionService) Ask(ctx context.Context, actor Actor, courseID uint, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	course, err := s.authorizeCourse(ctx, actor, courseID)
	if err != nil {
		return dto.QuestionResponse{}, err
	}

	title := strings.TrimSpace(s.sanitizer.Sanitize(payload.Title))
	if title == "" {
		return dto.QuestionResponse{}, errors.New("question title empty after sanitization")
	}

	moduleID := strings.TrimSpace(payload.ModuleID)
	if moduleID != "" {
		if _, ok := course.Modules.Get(moduleID); !ok {
			return dto.QuestionResponse{}, ErrModuleNotFound
		}
	}

	spanCtx, span := s.tracer.Start(ctx, "question.create", trace.WithAttributes(
		attribute.Int64("question.course_id", int64(courseID)),
		attribute.Int64("question.author_id", int64(actor.ID)),
	))
	defer span.End()

	question := models.CourseQuestion{
		CourseID: courseID,
		AuthorID: actor.ID,
		ModuleID: moduleID,
		Title:    title,
		Body:     strings.TrimSpace(s.sanitizer.Sanitize(payload.Body)),
	}
	if err := s.questions.Create(spanCtx, &question); err != nil {
		span.RecordError(err)
		return dto.QuestionResponse{}, err
	}

	s.logger.Info().Uint("question_id", question.ID).Uint("course_id", courseID).Uint("author_id", actor.ID).Msg("question created")
	return dto.NewQuestionResponse(question), nil
}

func (s *questionService) Answer(ctx context.Context, actor Actor, questionID uint, payload dto.AnswerCreateRequest) (dto.AnswerResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AnswerResponse{}, err
	}

	body := strings.TrimSpace(s.sanitizer.Sanitize(payload.Body))
	if body == "" {
		return dto.AnswerResponse{}, errors.New("answer body empty after sanitization")
	}

	question, _, err := s.loadAuthorized(ctx, actor, questionID)
	if err != nil {
		return dto.AnswerResponse{}, err
	}

	answer := models.CourseAnswer{
		QuestionID: question.ID,
		AuthorID:   actor.ID,
		Body:       body,
	}
	if err := s.questions.CreateAnswer(ctx, &answer); err != nil {
		return dto.AnswerResponse{}, err
	}

	return dto.NewAnswerResponse(answer, question.AcceptedAnswerID), nil
}

// Accept marks answerID as the accepted answer. The asker and the course
// managers may accept.
func (s *questionService) Accept(ctx context.Context, actor Actor, questionID, answerID uint) (dto.QuestionResponse, error) {
	question, course, err := s.loadAuthorized(ctx, actor, questionID)
	if err != nil {
		return dto.QuestionResponse{}, err
	}
	if question.AuthorID != actor.ID && !actor.CanManage(course) {
		return dto.QuestionResponse{}, ErrForbidden
	}

	answer, err := s.questions.GetAnswer(ctx, answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionResponse{}, ErrQuestionNotFound
		}
		return dto.QuestionResponse{}, err
	}
	if answer.QuestionID != question.ID {
		return dto.QuestionResponse{}, fmt.Errorf("%w: answer %d does not belong to question %d", ErrQuestionNotFound, answerID, questionID)
	}

	if err := s.questions.AcceptAnswer(ctx, question.ID, answer.ID); err != nil {
		return dto.QuestionResponse{}, err
	}

	question.AcceptedAnswerID = &answer.ID
	question.UpdatedAt = s.now().UTC()
	return dto.NewQuestionResponse(question), nil
}

// Delete removes a question with its answers. The asker, the course
// instructor and admins may delete.
func (s *questionService) Delete(ctx context.Context, actor Actor, questionID uint) error {
	question, course, err := s.loadAuthorized(ctx, actor, questionID)
	if err != nil {
		return err
	}
	if question.AuthorID != actor.ID && !actor.CanManage(course) {
		return ErrForbidden
	}

	if err := s.questions.Delete(ctx, question.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}

	s.logger.Info().Uint("question_id", question.ID).Uint("actor_id", actor.ID).Msg("question deleted")
	return nil
}

// authorizeCourse loads the course and checks that the actor manages it or
// is enrolled in it.
func (s *questionService) authorizeCourse(ctx context.Context, actor Actor, courseID uint) (models.Course, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, ErrCourseNotFound
		}
		return models.Course{}, err
	}
	if actor.CanManage(course) {
		return course, nil
	}

	if _, err := s.enrollments.Get(ctx, actor.ID, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, ErrForbidden
		}
		return models.Course{}, err
	}
	return course, nil
}

// loadAuthorized loads a question and authorizes the actor on its course.
func (s *questionService) loadAuthorized(ctx context.Context, actor Actor, questionID uint) (models.CourseQuestion, models.Course, error) {
	question, err := s.questions.Get(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.CourseQuestion{}, models.Course{}, ErrQuestionNotFound
		}
		return models.CourseQuestion{}, models.Course{}, err
	}
	course, err := s.authorizeCourse(ctx, actor, question.CourseID)
	if err != nil {
		return models.CourseQuestion{}, models.Course{}, err
	}
	return question, course, nil
}
