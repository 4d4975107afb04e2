package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/Sabyr2003/whatsapp-bot-store/internal/container"
	"github.com/Sabyr2003/whatsapp-bot-store/internal/models"
	"github.com/Sabyr2003/whatsapp-bot-store/internal/utils"
)

// WebhookHandler handles inbound WhatsApp webhook calls.
type WebhookHandler struct {
	container *container.Container
	processor *MessageProcessor
}

func NewWebhookHandler(c *container.Container, processor *MessageProcessor) *WebhookHandler {
	return &WebhookHandler{
		container: c,
		processor: processor,
	}
}

// HandleWebhook accepts one inbound message and responds with the
// replies to send back to the user.
func (h *WebhookHandler) HandleWebhook(ctx *fiber.Ctx) error {
	var msg models.InboundMessage
	if err := ctx.BodyParser(&msg); err != nil {
		utils.LogWarn(ctx.UserContext(), "webhook body parse failed", slog.Any("error", err))
		return ctx.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "validation_error",
			Message: "некорректное тело запроса",
		})
	}

	if msg.From == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "validation_error",
			Message: "поле from обязательно",
		})
	}

	replies := h.processor.HandleMessage(ctx.UserContext(), msg)
	return ctx.JSON(models.WebhookResponse{Replies: replies})
}
