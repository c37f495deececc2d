package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pulsegrid/notify-backend/internal/httpx"
)

// RequireRole gates a route group on the role claim the auth middleware
// stored in the request context.
func RequireRole(roles ...string) fiber.Handler {
	required := make(map[string]bool, len(roles))
	for _, role := range roles {
		required[strings.ToLower(strings.TrimSpace(role))] = true
	}
	return func(c *fiber.Ctx) error {
		userRole, _ := c.Locals("role").(string)
		if !required[strings.ToLower(userRole)] {
			return httpx.Forbidden(c, "forbidden", "Insufficient permissions")
		}
		return c.Next()
	}
}
