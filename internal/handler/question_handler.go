package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/izumi-lms/izumi-api/internal/dto"
	"github.com/izumi-lms/izumi-api/internal/service"
	"github.com/izumi-lms/izumi-api/internal/utils"
)

// QuestionHandler exposes course Q&A endpoints.
type QuestionHandler struct {
	service service.QuestionService
	logger  zerolog.Logger
}

// NewQuestionHandler constructs the handler.
func NewQuestionHandler(service service.QuestionService, logger zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		service: service,
		logger:  logger.With().Str("component", "question_handler").Logger(),
	}
}

// RegisterCourse attaches the per-course question routes behind guards. The
// course group is shared with the public catalog, so guards are bound per
// route.
func (h *QuestionHandler) RegisterCourse(router fiber.Router, guards ...fiber.Handler) {
	router.Get("/:id/questions", chain(guards, h.list)...)
	router.Post("/:id/questions", chain(guards, h.ask)...)
}

// Register attaches the question routes.
func (h *QuestionHandler) Register(router fiber.Router) {
	router.Get("/:id", h.get)
	router.Delete("/:id", h.delete)
	router.Post("/:id/answers", h.answer)
	router.Post("/:id/answers/:answerId/accept", h.accept)
}

func (h *QuestionHandler) list(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.service.List(withRequestContext(c), actor, courseID, dto.QuestionListRequest{Page: page, PageSize: pageSize})
	if err != nil {
		return handleError(c, h.logger, err, "failed to list questions")
	}

	return utils.OK(c, response.Items, "questions", response.Pagination)
}

func (h *QuestionHandler) ask(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.QuestionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	question, err := h.service.Ask(withRequestContext(c), actor, courseID, payload)
	if err != nil {
		return handleError(c, h.logger, err, "failed to create question")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "question created", question)
}

func (h *QuestionHandler) get(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	question, err := h.service.Get(withRequestContext(c), actor, id)
	if err != nil {
		return handleError(c, h.logger, err, "failed to load question")
	}

	return utils.SendSuccess(c, "question", question)
}

func (h *QuestionHandler) answer(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AnswerCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	answer, err := h.service.Answer(withRequestContext(c), actor, id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "failed to create answer")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "answer created", answer)
}

func (h *QuestionHandler) accept(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	answerID, err := parseUintParam(c, "answerId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	question, err := h.service.Accept(withRequestContext(c), actor, id, answerID)
	if err != nil {
		return handleError(c, h.logger, err, "failed to accept answer")
	}

	return utils.SendSuccess(c, "answer accepted", question)
}

func (h *QuestionHandler) delete(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(withRequestContext(c), actor, id); err != nil {
		return handleError(c, h.logger, err, "failed to delete question")
	}

	return utils.SendSuccess(c, "question deleted", nil)
}
