package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/maheshrc27/publisher/internal/service"
)

// OwnerIDKey is the fiber local the owner middleware sets.
const OwnerIDKey = "owner_id"

func GetOwnerID(c *fiber.Ctx) string {
	ownerID, _ := c.Locals(OwnerIDKey).(string)
	return ownerID
}

// writeError maps service errors onto HTTP statuses. Anything unknown is a 500
// and its message is not echoed to the caller.
func writeError(c *fiber.Ctx, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": verr.Error(),
			"field": verr.Field,
		})
	case errors.Is(err, service.ErrPostNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrTooLate),
		errors.Is(err, service.ErrNotCancellable),
		errors.Is(err, service.ErrNotEditable),
		errors.Is(err, service.ErrNotPublished):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		logrus.WithField("path", c.Path()).Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
