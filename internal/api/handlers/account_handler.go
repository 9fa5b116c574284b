package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/publisher/internal/service"
)

type AccountHandler struct {
	s service.AccountService
}

func NewAccountHandler(s service.AccountService) *AccountHandler {
	return &AccountHandler{s: s}
}

func (h *AccountHandler) ListPlatforms(c *fiber.Ctx) error {
	infos, err := h.s.Platforms(c.UserContext(), GetOwnerID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(infos)
}
