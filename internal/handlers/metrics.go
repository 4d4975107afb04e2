package handlers

import (
	"log"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler serves the Prometheus scrape endpoint.
type MetricsHandler struct {
	handler fiber.Handler // built once, reused for every scrape
}

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{
		handler: adaptor.HTTPHandler(promhttp.Handler()),
	}
}

func (h *MetricsHandler) GetMetrics(c *fiber.Ctx) error {
	err := h.handler(c)
	if err != nil {
		log.Printf("❌ Metrics handler error - status: %d, error: %v", c.Response().StatusCode(), err)
	}
	return err
}
