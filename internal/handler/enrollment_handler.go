package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/izumi-lms/izumi-api/internal/dto"
	"github.com/izumi-lms/izumi-api/internal/service"
	"github.com/izumi-lms/izumi-api/internal/utils"
)

// EnrollmentHandler exposes enrollment and progress endpoints.
type EnrollmentHandler struct {
	service service.EnrollmentService
	logger  zerolog.Logger
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(service service.EnrollmentService, logger zerolog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		service: service,
		logger:  logger.With().Str("component", "enrollment_handler").Logger(),
	}
}

// Register attaches the student enrollment routes.
func (h *EnrollmentHandler) Register(router fiber.Router) {
	router.Post("", h.enroll)
	router.Get("", h.list)
	router.Get("/:courseId", h.get)
	router.Delete("/:courseId", h.unenroll)
	router.Patch("/:courseId/modules/:moduleId", h.updateModule)
	router.Post("/:courseId/modules/:moduleId/quiz", h.submitQuiz)
}

// RegisterInstructor attaches the per-course progress view.
func (h *EnrollmentHandler) RegisterInstructor(router fiber.Router) {
	router.Get("/:id/progress", h.courseProgress)
}

func (h *EnrollmentHandler) enroll(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.EnrollRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	enrollment, err := h.service.Enroll(withRequestContext(c), studentID, payload)
	if err != nil {
		return handleError(c, h.logger, err, "failed to enroll")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "enrolled", enrollment)
}

func (h *EnrollmentHandler) list(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	enrollments, err := h.service.ListForStudent(withRequestContext(c), studentID)
	if err != nil {
		return handleError(c, h.logger, err, "failed to list enrollments")
	}

	return utils.SendSuccess(c, "enrollments", enrollments)
}

func (h *EnrollmentHandler) get(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	enrollment, err := h.service.Get(withRequestContext(c), studentID, courseID)
	if err != nil {
		return handleError(c, h.logger, err, "failed to load enrollment")
	}

	return utils.SendSuccess(c, "enrollment", enrollment)
}

func (h *EnrollmentHandler) unenroll(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Unenroll(withRequestContext(c), studentID, courseID); err != nil {
		return handleError(c, h.logger, err, "failed to unenroll")
	}

	return utils.SendSuccess(c, "unenrolled", nil)
}

func (h *EnrollmentHandler) updateModule(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ModuleProgressRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	enrollment, err := h.service.UpdateModuleProgress(withRequestContext(c), studentID, courseID, paramString(c, "moduleId"), payload)
	if err != nil {
		return handleError(c, h.logger, err, "failed to update progress")
	}

	return utils.SendSuccess(c, "progress updated", enrollment)
}

func (h *EnrollmentHandler) submitQuiz(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.QuizSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.SubmitQuiz(withRequestContext(c), studentID, courseID, paramString(c, "moduleId"), payload)
	if err != nil {
		return handleError(c, h.logger, err, "failed to grade quiz")
	}

	return utils.SendSuccess(c, "quiz graded", result)
}

func (h *EnrollmentHandler) courseProgress(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	progress, err := h.service.CourseProgress(withRequestContext(c), actor, courseID)
	if err != nil {
		return handleError(c, h.logger, err, "failed to load course progress")
	}

	return utils.SendSuccess(c, "course progress", progress)
}
