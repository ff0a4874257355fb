package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/izumi-lms/izumi-api/internal/completion"
	"github.com/izumi-lms/izumi-api/internal/dto"
	"github.com/izumi-lms/izumi-api/internal/models"
	"github.com/izumi-lms/izumi-api/internal/observability"
	"github.com/izumi-lms/izumi-api/internal/repository"
)

// maxProgressAttempts bounds the optimistic retry loop of a progress write.
const maxProgressAttempts = 3

// Evaluation triggers used as metric labels.
const (
	triggerEnroll   = "enroll"
	triggerProgress = "progress"
	triggerListing  = "listing"
)

// ProgressRewarder receives progress milestones for gamification.
type ProgressRewarder interface {
	ModuleCompleted(ctx context.Context, userID, courseID uint, moduleID string)
	QuizExcellence(ctx context.Context, userID, courseID uint, moduleID string, score float64)
	CourseCompleted(ctx context.Context, userID, courseID uint)
}

// EnrollmentService exposes enrollment and progress use-cases.
type EnrollmentService interface {
	Enroll(ctx context.Context, studentID uint, payload dto.EnrollRequest) (dto.EnrollmentResponse, error)
	ListForStudent(ctx context.Context, studentID uint) ([]dto.EnrollmentResponse, error)
	Get(ctx context.Context, studentID, courseID uint) (dto.EnrollmentResponse, error)
	UpdateModuleProgress(ctx context.Context, studentID, courseID uint, moduleID string, payload dto.ModuleProgressRequest) (dto.EnrollmentResponse, error)
	SubmitQuiz(ctx context.Context, studentID, courseID uint, moduleID string, payload dto.QuizSubmitRequest) (dto.QuizResultResponse, error)
	Unenroll(ctx context.Context, studentID, courseID uint) error
	CourseProgress(ctx context.Context, actor Actor, courseID uint) (dto.CourseProgressResponse, error)
}

type enrollmentService struct {
	enrollments repository.EnrollmentRepository
	courses     repository.CourseRepository
	users       repository.UserRepository
	rewards     ProgressRewarder
	events      ProgressEventPublisher
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewEnrollmentService constructs the enrollment service. rewards and events may be nil.
func NewEnrollmentService(
	enrollments repository.EnrollmentRepository,
	courses repository.CourseRepository,
	users repository.UserRepository,
	rewards ProgressRewarder,
	events ProgressEventPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) EnrollmentService {
	return &enrollmentService{
		enrollments: enrollments,
		courses:     courses,
		users:       users,
		rewards:     rewards,
		events:      events,
		validator:   validate,
		logger:      logger.With().Str("component", "enrollment_service").Logger(),
		tracer:      otel.Tracer("github.com/izumi-lms/izumi-api/internal/service/enrollment"),
		now:         time.Now,
	}
}

func (s *enrollmentService) Enroll(ctx context.Context, studentID uint, payload dto.EnrollRequest) (dto.EnrollmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EnrollmentResponse{}, err
	}

	course, err := s.courses.GetByID(ctx, payload.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EnrollmentResponse{}, ErrCourseNotFound
		}
		return dto.EnrollmentResponse{}, err
	}
	if !course.IsPublished() {
		return dto.EnrollmentResponse{}, ErrCourseNotPublished
	}

	if _, err := s.enrollments.Get(ctx, studentID, course.ID); err == nil {
		return dto.EnrollmentResponse{}, ErrAlreadyEnrolled
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.EnrollmentResponse{}, err
	}

	enrollment := models.Enrollment{
		StudentID:     studentID,
		CourseID:      course.ID,
		ModulesStatus: []models.ModuleStatus{},
		Version:       1,
	}
	result := completion.EvaluateCourse(course, enrollment.ModulesStatus)
	s.applyResult(&enrollment, result)
	observability.CompletionEvaluations().WithLabelValues(triggerEnroll, string(result.Status)).Inc()

	if err := s.enrollments.Create(ctx, &enrollment); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.EnrollmentResponse{}, ErrAlreadyEnrolled
		}
		return dto.EnrollmentResponse{}, err
	}
	enrollment.Course = course

	s.logger.Info().Uint("student_id", studentID).Uint("course_id", course.ID).Msg("student enrolled")
	return dto.NewEnrollmentResponse(enrollment, result.CompletedContentModules), nil
}

// ListForStudent returns every enrollment of the student. Records whose
// snapshot no longer matches the course are re-evaluated and persisted.
func (s *enrollmentService) ListForStudent(ctx context.Context, studentID uint) ([]dto.EnrollmentResponse, error) {
	enrollments, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.EnrollmentResponse, 0, len(enrollments))
	for i := range enrollments {
		enrollment := &enrollments[i]
		result := s.refresh(ctx, enrollment, enrollment.Course)
		responses = append(responses, dto.NewEnrollmentResponse(*enrollment, result.CompletedContentModules))
	}
	return responses, nil
}

func (s *enrollmentService) Get(ctx context.Context, studentID, courseID uint) (dto.EnrollmentResponse, error) {
	enrollment, err := s.load(ctx, studentID, courseID)
	if err != nil {
		return dto.EnrollmentResponse{}, err
	}
	result := s.refresh(ctx, &enrollment, enrollment.Course)
	return dto.NewEnrollmentResponse(enrollment, result.CompletedContentModules), nil
}

// UpdateModuleProgress upserts the student's entry for moduleID and
// re-evaluates completion. The write is retried against fresh data when a
// concurrent update wins the version check.
func (s *enrollmentService) UpdateModuleProgress(ctx context.Context, studentID, courseID uint, moduleID string, payload dto.ModuleProgressRequest) (dto.EnrollmentResponse, error) {
	moduleID = strings.TrimSpace(moduleID)
	if err := s.validator.Struct(payload); err != nil {
		return dto.EnrollmentResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "enrollment.progress.update", trace.WithAttributes(
		attribute.Int64("enrollment.student_id", int64(studentID)),
		attribute.Int64("enrollment.course_id", int64(courseID)),
		attribute.String("enrollment.module_id", moduleID),
	))
	defer span.End()

	for attempt := 1; attempt <= maxProgressAttempts; attempt++ {
		response, err := s.applyProgress(ctx, studentID, courseID, moduleID, payload)
		if err == nil {
			span.SetAttributes(
				attribute.Int("enrollment.attempts", attempt),
				attribute.String("enrollment.status", response.CompletionStatus),
			)
			return response, nil
		}
		if !errors.Is(err, repository.ErrStaleEnrollment) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "progress_update_failed")
			return dto.EnrollmentResponse{}, err
		}

		observability.ProgressConflicts().Inc()
		s.logger.Debug().Int("attempt", attempt).Uint("student_id", studentID).Uint("course_id", courseID).Msg("progress write lost version check")
	}

	span.SetStatus(codes.Error, "progress_conflict")
	return dto.EnrollmentResponse{}, ErrProgressConflict
}

func (s *enrollmentService) applyProgress(ctx context.Context, studentID, courseID uint, moduleID string, payload dto.ModuleProgressRequest) (dto.EnrollmentResponse, error) {
	enrollment, err := s.load(ctx, studentID, courseID)
	if err != nil {
		return dto.EnrollmentResponse{}, err
	}
	course := enrollment.Course

	content := completion.ContentModules(course)
	module, ok := findModule(content, moduleID)
	if !ok {
		return dto.EnrollmentResponse{}, ErrModuleNotFound
	}

	previousStatus := enrollment.CompletionStatus
	previousEntry, _ := enrollment.StatusFor(moduleID)

	now := s.now().UTC()
	entry := upsertStatus(&enrollment, moduleID, payload, now)

	result := completion.Evaluate(content, enrollment.ModulesStatus)
	s.applyResult(&enrollment, result)

	if err := s.enrollments.SaveProgress(ctx, &enrollment); err != nil {
		return dto.EnrollmentResponse{}, err
	}
	observability.CompletionEvaluations().WithLabelValues(triggerProgress, string(result.Status)).Inc()

	if s.rewards != nil {
		if entry.Completed && !previousEntry.Completed {
			s.rewards.ModuleCompleted(ctx, studentID, courseID, moduleID)
		}
		if module.IsQuiz() && entry.QuizScore != nil && *entry.QuizScore >= QuizExcellenceScore {
			s.rewards.QuizExcellence(ctx, studentID, courseID, moduleID, *entry.QuizScore)
		}
	}
	s.afterTransition(ctx, enrollment, previousStatus, result)

	return dto.NewEnrollmentResponse(enrollment, result.CompletedContentModules), nil
}

func (s *enrollmentService) SubmitQuiz(ctx context.Context, studentID, courseID uint, moduleID string, payload dto.QuizSubmitRequest) (dto.QuizResultResponse, error) {
	moduleID = strings.TrimSpace(moduleID)
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuizResultResponse{}, err
	}

	enrollment, err := s.load(ctx, studentID, courseID)
	if err != nil {
		return dto.QuizResultResponse{}, err
	}

	module, ok := findModule(completion.ContentModules(enrollment.Course), moduleID)
	if !ok || !module.IsQuiz() {
		return dto.QuizResultResponse{}, ErrModuleNotFound
	}

	quiz, err := models.ParseQuizContent(module.Content)
	if err != nil || len(quiz.Questions) == 0 {
		return dto.QuizResultResponse{}, ErrInvalidModuleContent
	}

	score, correct := gradeQuiz(quiz, payload.Answers)
	passing := quiz.EffectivePassingScore()
	passed := score >= passing

	updated, err := s.UpdateModuleProgress(ctx, studentID, courseID, moduleID, dto.ModuleProgressRequest{
		TimeSpent: payload.TimeSpent,
		Completed: &passed,
		QuizScore: &score,
	})
	if err != nil {
		return dto.QuizResultResponse{}, err
	}

	return dto.QuizResultResponse{
		Score:        score,
		Correct:      correct,
		Total:        len(quiz.Questions),
		PassingScore: passing,
		Passed:       passed,
		Enrollment:   updated,
	}, nil
}

func (s *enrollmentService) Unenroll(ctx context.Context, studentID, courseID uint) error {
	if err := s.enrollments.Delete(ctx, studentID, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEnrollmentNotFound
		}
		return err
	}
	s.logger.Info().Uint("student_id", studentID).Uint("course_id", courseID).Msg("student unenrolled")
	return nil
}

func (s *enrollmentService) CourseProgress(ctx context.Context, actor Actor, courseID uint) (dto.CourseProgressResponse, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CourseProgressResponse{}, ErrCourseNotFound
		}
		return dto.CourseProgressResponse{}, err
	}
	if !actor.CanManage(course) {
		return dto.CourseProgressResponse{}, ErrForbidden
	}

	enrollments, err := s.enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		return dto.CourseProgressResponse{}, err
	}

	studentIDs := make([]uint, 0, len(enrollments))
	for _, enrollment := range enrollments {
		studentIDs = append(studentIDs, enrollment.StudentID)
	}
	students, err := s.users.ListByIDs(ctx, studentIDs)
	if err != nil {
		return dto.CourseProgressResponse{}, err
	}
	byID := make(map[uint]models.User, len(students))
	for _, student := range students {
		byID[student.ID] = student
	}

	response := dto.CourseProgressResponse{CourseID: courseID, Students: make([]dto.CourseProgressRow, 0, len(enrollments))}
	total := 0.0
	for i := range enrollments {
		enrollment := &enrollments[i]
		s.refresh(ctx, enrollment, course)

		student := byID[enrollment.StudentID]
		response.Students = append(response.Students, dto.CourseProgressRow{
			EnrollmentID:         enrollment.ID,
			StudentID:            enrollment.StudentID,
			StudentName:          student.Name,
			StudentEmail:         student.Email,
			CompletionStatus:     string(enrollment.CompletionStatus),
			CompletionPercentage: enrollment.CompletionPercentage,
			UpdatedAt:            enrollment.UpdatedAt,
		})
		total += enrollment.CompletionPercentage
		if enrollment.IsCompleted() {
			response.Completed++
		}
	}
	response.Enrolled = len(enrollments)
	if response.Enrolled > 0 {
		response.AveragePercent = total / float64(response.Enrolled)
	}

	return response, nil
}

func (s *enrollmentService) load(ctx context.Context, studentID, courseID uint) (models.Enrollment, error) {
	enrollment, err := s.enrollments.Get(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Enrollment{}, ErrEnrollmentNotFound
		}
		return models.Enrollment{}, err
	}
	if enrollment.Course.ID == 0 {
		return models.Enrollment{}, ErrCourseNotFound
	}
	return enrollment, nil
}

// refresh evaluates enrollment against course and persists the result when
// the stored snapshot is stale. Persistence failures keep the stale record
// and are only logged; the next read retries.
func (s *enrollmentService) refresh(ctx context.Context, enrollment *models.Enrollment, course models.Course) completion.Result {
	result := completion.EvaluateCourse(course, enrollment.ModulesStatus)
	if !completion.NeedsRefresh(course, enrollment.ModuleSnapshotCount) {
		return result
	}

	observability.CompletionEvaluations().WithLabelValues(triggerListing, string(result.Status)).Inc()

	updated := *enrollment
	previousStatus := updated.CompletionStatus
	s.applyResult(&updated, result)
	if err := s.enrollments.SaveProgress(ctx, &updated); err != nil {
		s.logger.Warn().Err(err).Uint("enrollment_id", enrollment.ID).Msg("failed to persist refreshed completion")
		return result
	}

	*enrollment = updated
	s.afterTransition(ctx, updated, previousStatus, result)
	return result
}

func (s *enrollmentService) applyResult(enrollment *models.Enrollment, result completion.Result) {
	wasCompleted := enrollment.IsCompleted()
	enrollment.CompletionStatus = result.Status
	enrollment.CompletionPercentage = result.Percentage
	enrollment.ModuleSnapshotCount = result.TotalContentModules

	switch {
	case result.Status == models.CompletionCompleted && !wasCompleted:
		now := s.now().UTC()
		enrollment.CompletedAt = &now
	case result.Status != models.CompletionCompleted:
		enrollment.CompletedAt = nil
	}
}

func (s *enrollmentService) afterTransition(ctx context.Context, enrollment models.Enrollment, previous models.CompletionStatus, result completion.Result) {
	if previous == result.Status {
		return
	}

	observability.CompletionTransitions().WithLabelValues(string(previous), string(result.Status)).Inc()
	s.logger.Info().
		Uint("enrollment_id", enrollment.ID).
		Str("from", string(previous)).
		Str("to", string(result.Status)).
		Float64("percentage", result.Percentage).
		Msg("completion status changed")

	if result.Status == models.CompletionCompleted && s.rewards != nil {
		s.rewards.CourseCompleted(ctx, enrollment.StudentID, enrollment.CourseID)
	}

	if s.events != nil {
		s.events.PublishCompletion(ctx, dto.CompletionEvent{
			EnrollmentID: enrollment.ID,
			StudentID:    enrollment.StudentID,
			CourseID:     enrollment.CourseID,
			Previous:     string(previous),
			Current:      string(result.Status),
			Percentage:   result.Percentage,
			OccurredAt:   s.now().UTC(),
		})
	}
}

// upsertStatus inserts or updates the entry of moduleID and returns it.
// Completion may be withdrawn; time spent replaces the stored value.
func upsertStatus(enrollment *models.Enrollment, moduleID string, payload dto.ModuleProgressRequest, now time.Time) models.ModuleStatus {
	statuses := make([]models.ModuleStatus, 0, len(enrollment.ModulesStatus)+1)
	index := -1
	for _, status := range enrollment.ModulesStatus {
		if status.ModuleID == moduleID {
			if index >= 0 {
				continue
			}
			index = len(statuses)
		}
		statuses = append(statuses, status)
	}

	var entry models.ModuleStatus
	if index >= 0 {
		entry = statuses[index]
	} else {
		entry = models.ModuleStatus{ModuleID: moduleID}
	}

	if payload.Completed != nil {
		entry.Completed = *payload.Completed
	}
	if payload.TimeSpent != nil {
		entry.TimeSpent = *payload.TimeSpent
	}
	if payload.QuizScore != nil {
		score := *payload.QuizScore
		entry.QuizScore = &score
	}
	entry.UpdatedAt = now

	if index >= 0 {
		statuses[index] = entry
	} else {
		statuses = append(statuses, entry)
	}
	enrollment.ModulesStatus = statuses
	return entry
}

func findModule(content []models.Module, moduleID string) (models.Module, bool) {
	for _, module := range content {
		if module.ID == moduleID {
			return module, true
		}
	}
	return models.Module{}, false
}

// gradeQuiz returns the percentage of correctly answered questions and the
// number of correct answers. Missing answers count as wrong.
func gradeQuiz(quiz models.QuizContent, answers []int) (float64, int) {
	if len(quiz.Questions) == 0 {
		return 0, 0
	}
	correct := 0
	for i, question := range quiz.Questions {
		if i >= len(answers) || question.Answer == nil {
			continue
		}
		if answers[i] == *question.Answer {
			correct++
		}
	}
	return float64(correct) * 100 / float64(len(quiz.Questions)), correct
}
