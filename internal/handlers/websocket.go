package handlers

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/Sabyr2003/whatsapp-bot-store/internal/container"
	"github.com/Sabyr2003/whatsapp-bot-store/internal/models"
	"github.com/Sabyr2003/whatsapp-bot-store/internal/utils"
)

const wsReadDeadline = 60 * time.Second

// WSHandler serves the same message protocol as the webhook over a
// persistent WebSocket connection, mostly for local testing without a
// WhatsApp gateway in front.
type WSHandler struct {
	container *container.Container
	processor *MessageProcessor

	mu      sync.RWMutex
	clients map[string]*websocket.Conn
}

func NewWSHandler(c *container.Container, processor *MessageProcessor) *WSHandler {
	return &WSHandler{
		container: c,
		processor: processor,
		clients:   make(map[string]*websocket.Conn),
	}
}

type wsRequest struct {
	Type     string `json:"type"`
	From     string `json:"from"`
	Body     string `json:"body"`
	HasMedia bool   `json:"has_media"`
	MediaURL string `json:"media_url"`
}

type wsResponse struct {
	Type    string   `json:"type"`
	Replies []string `json:"replies,omitempty"`
	Error   string   `json:"error,omitempty"`
	Message string   `json:"message,omitempty"`
}

func (h *WSHandler) HandleWebSocket(c *websocket.Conn) {
	clientID := uuid.New().String()
	ctx := context.Background()

	utils.LogInfo(ctx, "🔌 клиент подключён", slog.String("client_id", clientID))

	h.addClient(clientID, c)
	defer h.removeClient(clientID)

	c.SetReadDeadline(time.Now().Add(wsReadDeadline))
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})

	for {
		var req wsRequest
		if err := c.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				utils.LogWarn(ctx, "websocket read error", slog.Any("error", err))
			} else if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				utils.LogWarn(ctx, "websocket timeout", slog.String("client_id", clientID))
			}
			break
		}

		c.SetReadDeadline(time.Now().Add(wsReadDeadline))
		h.handleMessage(ctx, c, &req, clientID)
	}

	utils.LogInfo(ctx, "🔌 клиент отключён", slog.String("client_id", clientID))
}

func (h *WSHandler) handleMessage(ctx context.Context, c *websocket.Conn, req *wsRequest, clientID string) {
	switch req.Type {
	case "ping":
		h.sendResponse(ctx, c, &wsResponse{Type: "pong"})
	case "", "chat", "text", "audio", "voice", "ptt":
		if req.From == "" {
			req.From = clientID
		}
		msgType := req.Type
		if msgType == "" || msgType == "chat" {
			msgType = "text"
		}
		replies := h.processor.HandleMessage(ctx, models.InboundMessage{
			From:     req.From,
			Body:     req.Body,
			Type:     msgType,
			HasMedia: req.HasMedia,
			MediaURL: req.MediaURL,
		})
		h.sendResponse(ctx, c, &wsResponse{Type: "replies", Replies: replies})
	default:
		h.sendResponse(ctx, c, &wsResponse{
			Type:    "error",
			Error:   "unknown_message_type",
			Message: "неизвестный тип сообщения",
		})
	}
}

func (h *WSHandler) addClient(id string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[id] = c
}

func (h *WSHandler) removeClient(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

func (h *WSHandler) sendResponse(ctx context.Context, c *websocket.Conn, resp *wsResponse) {
	if err := c.WriteJSON(resp); err != nil {
		utils.LogWarn(ctx, "websocket write failed", slog.Any("error", err))
	}
}
