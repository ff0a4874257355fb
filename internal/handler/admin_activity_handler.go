package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/izumi-lms/izumi-api/internal/dto"
	"github.com/izumi-lms/izumi-api/internal/service"
	"github.com/izumi-lms/izumi-api/internal/utils"
)

// AdminActivityHandler exposes the audit trails.
type AdminActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewAdminActivityHandler constructs the handler.
func NewAdminActivityHandler(service service.ActivityService, logger zerolog.Logger) *AdminActivityHandler {
	return &AdminActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_activity_handler").Logger(),
	}
}

// Register attaches the activity log routes to the router group.
func (h *AdminActivityHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

// RegisterLoginAudits attaches the failed-login audit routes.
func (h *AdminActivityHandler) RegisterLoginAudits(router fiber.Router) {
	router.Get("", h.listLoginAudits)
}

func (h *AdminActivityHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	actorIDInt, err := parseQueryInt(c, "actor_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid actor id")
	}

	req := dto.AdminActivityListRequest{
		Page:       page,
		PageSize:   pageSize,
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
	}
	if actorIDInt > 0 {
		req.ActorID = uint(actorIDInt)
	}

	response, err := h.service.List(withRequestContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err, "failed to list activity logs")
	}

	return utils.OK(c, response.Items, "activity logs", response.Pagination)
}

func (h *AdminActivityHandler) listLoginAudits(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.service.ListLoginAudits(withRequestContext(c), dto.LoginAuditListRequest{
		Page:     page,
		PageSize: pageSize,
		Email:    c.Query("email"),
		Reason:   c.Query("reason"),
	})
	if err != nil {
		return handleError(c, h.logger, err, "failed to list login audits")
	}

	return utils.OK(c, response.Items, "login audits", response.Pagination)
}
