package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	job "github.com/maheshrc27/publisher/internal/jobs"
)

type SchedulerControl interface {
	Pause()
	Resume()
	Status() job.Status
	Tick(ctx context.Context) int
}

type SchedulerHandler struct {
	s SchedulerControl
}

func NewSchedulerHandler(s SchedulerControl) *SchedulerHandler {
	return &SchedulerHandler{s: s}
}

func (h *SchedulerHandler) Status(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.s.Status())
}

func (h *SchedulerHandler) Pause(c *fiber.Ctx) error {
	h.s.Pause()
	return c.Status(fiber.StatusOK).JSON(h.s.Status())
}

func (h *SchedulerHandler) Resume(c *fiber.Ctx) error {
	h.s.Resume()
	return c.Status(fiber.StatusOK).JSON(h.s.Status())
}

// Tick runs one scheduler pass now. Dispatched jobs finish in the background.
func (h *SchedulerHandler) Tick(c *fiber.Ctx) error {
	n := h.s.Tick(c.UserContext())
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"dispatched": n})
}
