package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/maheshrc27/publisher/internal/models"
	"github.com/maheshrc27/publisher/internal/repository"
	"github.com/maheshrc27/publisher/internal/service"
	"github.com/maheshrc27/publisher/internal/transfer"
)

type PostHandler struct {
	s service.PostService
	a service.AnalyticsService
}

func NewPostHandler(postService service.PostService, analyticsService service.AnalyticsService) *PostHandler {
	return &PostHandler{s: postService, a: analyticsService}
}

func (h *PostHandler) SchedulePost(c *fiber.Ctx) error {
	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		logrus.Info(err.Error())
		return badRequest(c, "Unable to parse body")
	}

	post, err := h.s.SchedulePost(c.UserContext(), GetOwnerID(c), &pc)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) CreateDraft(c *fiber.Ctx) error {
	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		logrus.Info(err.Error())
		return badRequest(c, "Unable to parse body")
	}

	post, err := h.s.CreateDraft(c.UserContext(), GetOwnerID(c), &pc)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	var pu transfer.PostUpdate
	if err := c.BodyParser(&pu); err != nil {
		logrus.Info(err.Error())
		return badRequest(c, "Unable to parse body")
	}

	post, err := h.s.UpdatePost(c.UserContext(), GetOwnerID(c), c.Params("id"), &pu)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) Reschedule(c *fiber.Ctx) error {
	var req transfer.Reschedule
	if err := c.BodyParser(&req); err != nil {
		logrus.Info(err.Error())
		return badRequest(c, "Unable to parse body")
	}

	post, err := h.s.Reschedule(c.UserContext(), GetOwnerID(c), c.Params("id"), req.ScheduledDate)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) CancelPost(c *fiber.Ctx) error {
	post, err := h.s.Cancel(c.UserContext(), GetOwnerID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	if err := h.s.Remove(c.UserContext(), GetOwnerID(c), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	post, err := h.s.Get(c.UserContext(), GetOwnerID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	filter := repository.PostFilter{
		Status:   models.PostStatus(c.Query("status")),
		Platform: c.Query("platform"),
		Limit:    c.QueryInt("limit", 0),
		Offset:   c.QueryInt("offset", 0),
	}
	for key, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, "Query parameter "+key+" must be RFC3339")
		}
		*dst = &t
	}

	posts, err := h.s.List(c.UserContext(), GetOwnerID(c), filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) NextScheduled(c *fiber.Ctx) error {
	next, err := h.s.NextScheduledTime(c.UserContext(), GetOwnerID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(transfer.NextScheduled{NextScheduledTime: next})
}

func (h *PostHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.s.Stats(c.UserContext(), GetOwnerID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(stats)
}

func (h *PostHandler) RefreshAnalytics(c *fiber.Ctx) error {
	post, err := h.a.RefreshPost(c.UserContext(), GetOwnerID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}
