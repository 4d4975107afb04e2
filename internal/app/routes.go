package app

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/Sabyr2003/whatsapp-bot-store/internal/container"
	"github.com/Sabyr2003/whatsapp-bot-store/internal/handlers"
	"github.com/Sabyr2003/whatsapp-bot-store/internal/middleware"
)

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, c *container.Container) {
	processor := handlers.NewMessageProcessor(c)

	// Prometheus metrics endpoint (no auth required for scraping)
	metricsHandler := handlers.NewMetricsHandler()
	app.Get("/metrics", metricsHandler.GetMetrics)

	// Health check
	app.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now(),
			"services":  c.HealthCheck(),
		})
	})

	// Apply Prometheus middleware to all /api routes
	api := app.Group("/api", middleware.PrometheusMiddleware())

	webhookHandler := handlers.NewWebhookHandler(c, processor)
	api.Post("/webhook", webhookHandler.HandleWebhook)

	setupWebSocketRoutes(app, c, processor)
}

func setupWebSocketRoutes(app *fiber.App, c *container.Container, processor *handlers.MessageProcessor) {
	wsHandler := handlers.NewWSHandler(c, processor)

	app.Use("/ws", func(ctx *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(ctx) {
			ctx.Locals("allowed", true)
			return ctx.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		wsHandler.HandleWebSocket(conn)
	}, websocket.Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}))
}
