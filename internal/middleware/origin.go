package middleware

import (
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pulsegrid/notify-backend/internal/httpx"
)

// OriginAllowed rejects browser requests from origins outside
// ALLOWED_ORIGINS. Requests without an Origin header (curl, server-side
// producers) pass through, as does everything when the list is unset.
func OriginAllowed() fiber.Handler {
	allowed := make(map[string]bool)
	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed[origin] = true
		}
	}
	return func(c *fiber.Ctx) error {
		origin := strings.TrimSpace(c.Get("Origin"))
		if origin == "" || len(allowed) == 0 || allowed[origin] {
			return c.Next()
		}
		return httpx.Forbidden(c, "forbidden_origin", "Origin not allowed")
	}
}
