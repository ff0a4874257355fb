package middleware

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/izumi-lms/izumi-api/internal/utils"
)

// RoleDenial is the error detail sent when RequireRole rejects a request.
type RoleDenial struct {
	Route         string   `json:"route"`
	Role          string   `json:"role"`
	RequiredRoles []string `json:"required_roles"`
}

// RequireRole admits requests whose JWT role is one of roles. Requests
// without a role answer 401; any other role answers 403 naming the request
// path and the roles it accepts.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := normalizeRoleValue(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}
	required := make([]string, 0, len(allowed))
	for role := range allowed {
		required = append(required, role)
	}
	sort.Strings(required)

	return func(c *fiber.Ctx) error {
		role := normalizeRoleValue(c.Locals(LocalUserRole))
		if role == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
		}
		if _, ok := allowed[role]; ok {
			return c.Next()
		}

		route := c.Method() + " " + c.Path()
		return utils.Fail(c, fiber.StatusForbidden, fmt.Sprintf("role %s cannot access %s", role, route), RoleDenial{
			Route:         route,
			Role:          role,
			RequiredRoles: required,
		})
	}
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	}
}
