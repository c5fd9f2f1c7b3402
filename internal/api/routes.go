package api

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/katakuxiko/agrochat/internal/metrics"
)

// AppConfig collects what NewApp needs beyond the handler.
type AppConfig struct {
	Metrics *metrics.Metrics
	// AccessLog receives one line per request; nil disables it.
	AccessLog io.Writer
}

// NewApp builds the fiber app with middleware and all routes.
func NewApp(h *Handler, cfg AppConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "agrochat",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	if cfg.AccessLog != nil {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Output:     cfg.AccessLog,
			TimeFormat: "15:04:05",
		}))
	}

	RegisterRoutes(app, h, cfg.Metrics)
	return app
}

func RegisterRoutes(app *fiber.App, h *Handler, m *metrics.Metrics) {
	app.Get("/health", h.Health)
	app.Get("/models", h.ListModels)
	app.Post("/chat", h.Chat)
	app.Delete("/chat/:session", h.ResetSession)
	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}
}
