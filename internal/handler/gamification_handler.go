package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/izumi-lms/izumi-api/internal/service"
	"github.com/izumi-lms/izumi-api/internal/utils"
)

// GamificationHandler exposes points, levels and the leaderboard.
type GamificationHandler struct {
	service service.GamificationService
	logger  zerolog.Logger
}

// NewGamificationHandler constructs the handler.
func NewGamificationHandler(service service.GamificationService, logger zerolog.Logger) *GamificationHandler {
	return &GamificationHandler{
		service: service,
		logger:  logger.With().Str("component", "gamification_handler").Logger(),
	}
}

// Register attaches the gamification routes.
func (h *GamificationHandler) Register(router fiber.Router) {
	router.Get("/me", h.profile)
	router.Get("/leaderboard", h.leaderboard)
}

func (h *GamificationHandler) profile(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	profile, err := h.service.Profile(withRequestContext(c), userID)
	if err != nil {
		return handleError(c, h.logger, err, "failed to load gamification profile")
	}

	return utils.SendSuccess(c, "gamification profile", profile)
}

func (h *GamificationHandler) leaderboard(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	entries, err := h.service.Leaderboard(withRequestContext(c), limit)
	if err != nil {
		return handleError(c, h.logger, err, "failed to load leaderboard")
	}

	return utils.SendSuccess(c, "leaderboard", entries)
}
