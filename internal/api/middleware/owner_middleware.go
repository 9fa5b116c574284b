package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/publisher/internal/api/handlers"
)

// OwnerHeader carries the owner id set by the upstream gateway after it has
// authenticated the caller.
const OwnerHeader = "X-Owner-ID"

func OwnerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID := strings.TrimSpace(c.Get(OwnerHeader))
		if ownerID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing " + OwnerHeader + " header",
			})
		}
		c.Locals(handlers.OwnerIDKey, ownerID)
		return c.Next()
	}
}
