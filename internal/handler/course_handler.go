package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/izumi-lms/izumi-api/internal/dto"
	"github.com/izumi-lms/izumi-api/internal/service"
	"github.com/izumi-lms/izumi-api/internal/utils"
)

// CourseHandler exposes the public catalog and course authoring.
type CourseHandler struct {
	service service.CourseService
	logger  zerolog.Logger
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(service service.CourseService, logger zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		service: service,
		logger:  logger.With().Str("component", "course_handler").Logger(),
	}
}

// RegisterCatalog attaches the public catalog routes. guards run before the
// course detail, which shows drafts to their authors.
func (h *CourseHandler) RegisterCatalog(router fiber.Router, guards ...fiber.Handler) {
	router.Get("", h.listPublished)
	router.Get("/:id", chain(guards, h.get)...)
}

// RegisterAuthoring attaches instructor routes. Callers guard the group.
func (h *CourseHandler) RegisterAuthoring(router fiber.Router) {
	router.Get("", h.listOwned)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Post("/:id/publish", h.publish)
	router.Post("/:id/modules", h.addModule)
	router.Patch("/:id/modules/:moduleId", h.updateModule)
	router.Delete("/:id/modules/:moduleId", h.deleteModule)
}

// RegisterAdmin attaches the admin course routes. Callers guard the group.
func (h *CourseHandler) RegisterAdmin(router fiber.Router) {
	router.Get("", h.listOwned)
	router.Delete("/:id", h.delete)
}

func courseListRequest(c *fiber.Ctx) (dto.CourseListRequest, error) {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return dto.CourseListRequest{}, err
	}
	return dto.CourseListRequest{
		Search:   strings.TrimSpace(c.Query("search")),
		Category: strings.TrimSpace(c.Query("category")),
		Status:   strings.ToLower(strings.TrimSpace(c.Query("status"))),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (h *CourseHandler) listPublished(c *fiber.Ctx) error {
	req, err := courseListRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.service.ListPublished(withRequestContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err, "failed to list courses")
	}

	return utils.OK(c, response.Items, "courses", response.Pagination)
}

func (h *CourseHandler) listOwned(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	req, err := courseListRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.service.ListOwned(withRequestContext(c), actor, req)
	if err != nil {
		return handleError(c, h.logger, err, "failed to list courses")
	}

	return utils.OK(c, response.Items, "courses", response.Pagination)
}

func (h *CourseHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	course, err := h.service.Get(withRequestContext(c), optionalActor(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "failed to load course")
	}

	return utils.SendSuccess(c, "course", course)
}

func (h *CourseHandler) create(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.CourseCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	course, err := h.service.Create(withRequestContext(c), actor, payload)
	if err != nil {
		return handleError(c, h.logger, err, "failed to create course")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "course created", course)
}

func (h *CourseHandler) update(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CourseUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	course, err := h.service.Update(withRequestContext(c), actor, id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "failed to update course")
	}

	return utils.SendSuccess(c, "course updated", course)
}

func (h *CourseHandler) publish(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	course, err := h.service.Publish(withRequestContext(c), actor, id)
	if err != nil {
		return handleError(c, h.logger, err, "failed to publish course")
	}

	return utils.SendSuccess(c, "course published", course)
}

func (h *CourseHandler) delete(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(withRequestContext(c), actor, id); err != nil {
		return handleError(c, h.logger, err, "failed to delete course")
	}

	return utils.SendSuccess(c, "course deleted", nil)
}

func (h *CourseHandler) addModule(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ModuleCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	course, err := h.service.AddModule(withRequestContext(c), actor, id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "failed to add module")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "module added", course)
}

func (h *CourseHandler) updateModule(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ModuleUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	course, err := h.service.UpdateModule(withRequestContext(c), actor, id, paramString(c, "moduleId"), payload)
	if err != nil {
		return handleError(c, h.logger, err, "failed to update module")
	}

	return utils.SendSuccess(c, "module updated", course)
}

func (h *CourseHandler) deleteModule(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	course, err := h.service.DeleteModule(withRequestContext(c), actor, id, paramString(c, "moduleId"))
	if err != nil {
		return handleError(c, h.logger, err, "failed to delete module")
	}

	return utils.SendSuccess(c, "module deleted", course)
}
