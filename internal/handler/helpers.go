package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/rs/zerolog"

	"github.com/izumi-lms/izumi-api/internal/middleware"
	"github.com/izumi-lms/izumi-api/internal/service"
	"github.com/izumi-lms/izumi-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Params(key))
	if value == "" {
		return 0, fmt.Errorf("%s required", key)
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(parsed), nil
}

func parsePagination(c *fiber.Ctx) (int, int, error) {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return 0, 0, errors.New("invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return 0, 0, errors.New("invalid page size")
	}
	return page, pageSize, nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals(middleware.LocalUserID); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals(middleware.LocalUserRole); v != nil {
		if role, ok := v.(string); ok {
			return strings.ToLower(strings.TrimSpace(role))
		}
	}
	return ""
}

func actorFromContext(c *fiber.Ctx) (service.Actor, bool) {
	actor := service.Actor{ID: userIDFromContext(c), Role: userRoleFromContext(c)}
	return actor, actor.ID != 0
}

// optionalActor returns the caller when a token was presented.
func optionalActor(c *fiber.Ctx) *service.Actor {
	actor, ok := actorFromContext(c)
	if !ok {
		return nil
	}
	return &actor
}

func withRequestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// statusFor maps service errors onto HTTP status codes. Zero means the error
// is unexpected.
func statusFor(err error) int {
	switch {
	case isValidationError(err):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrInvalidModuleContent):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrCourseNotFound),
		errors.Is(err, service.ErrModuleNotFound),
		errors.Is(err, service.ErrEnrollmentNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrQuestionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrAlreadyEnrolled),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrProgressConflict),
		errors.Is(err, service.ErrCourseNotPublished):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	case errors.Is(err, service.ErrLoginBlocked):
		return fiber.StatusTooManyRequests
	}
	return 0
}

// handleError writes the error envelope for err. Unexpected errors are
// logged and reported as a generic 500 with fallback as message.
func handleError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	if status := statusFor(err); status != 0 {
		return utils.SendError(c, status, err.Error())
	}
	requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg(fallback)
	return utils.SendError(c, fiber.StatusInternalServerError, fallback)
}

// paramString returns a copy of a route parameter that outlives the request.
func paramString(c *fiber.Ctx, key string) string {
	return fiberutils.CopyString(strings.TrimSpace(c.Params(key)))
}

func chain(guards []fiber.Handler, h fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(guards)+1)
	out = append(out, guards...)
	return append(out, h)
}
