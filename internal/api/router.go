package api

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"

	"github.com/maheshrc27/publisher/internal/api/handlers"
	"github.com/maheshrc27/publisher/internal/api/middleware"
	"github.com/maheshrc27/publisher/internal/service"
)

type Services struct {
	Posts     service.PostService
	Analytics service.AnalyticsService
	Accounts  service.AccountService
	Scheduler handlers.SchedulerControl
}

type Options struct {
	// RequestLog enables fiber's access log.
	RequestLog bool
}

func NewApp(s Services, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		// Header and param values outlive the request as owner ids and cache keys.
		Immutable:    true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    4 * 1024 * 1024,
		JSONEncoder:  sonic.Marshal,
		JSONDecoder:  sonic.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				logrus.WithField("path", c.Path()).Error(err.Error())
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	if opts.RequestLog {
		app.Use(fiberlogger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, " + middleware.OwnerHeader,
		MaxAge:       3600,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	scheduler := handlers.NewSchedulerHandler(s.Scheduler)
	admin := app.Group("/scheduler")
	admin.Get("/status", scheduler.Status)
	admin.Post("/pause", scheduler.Pause)
	admin.Post("/resume", scheduler.Resume)
	admin.Post("/tick", scheduler.Tick)

	api := app.Group("/api")
	api.Use(middleware.OwnerMiddleware())

	post := handlers.NewPostHandler(s.Posts, s.Analytics)
	api.Post("/posts", post.SchedulePost)
	api.Post("/posts/drafts", post.CreateDraft)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/next", post.NextScheduled)
	api.Get("/posts/stats", post.Stats)
	api.Get("/posts/:id", post.GetPost)
	api.Put("/posts/:id", post.UpdatePost)
	api.Delete("/posts/:id", post.RemovePost)
	api.Post("/posts/:id/reschedule", post.Reschedule)
	api.Post("/posts/:id/cancel", post.CancelPost)
	api.Post("/posts/:id/analytics", post.RefreshAnalytics)

	accounts := handlers.NewAccountHandler(s.Accounts)
	api.Get("/accounts", accounts.ListPlatforms)

	return app
}
