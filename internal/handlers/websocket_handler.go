package handlers

import (
	"log"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/pulsegrid/notify-backend/internal/cache"
	"github.com/pulsegrid/notify-backend/internal/handlers/ws"
	"github.com/pulsegrid/notify-backend/internal/service"
)

type WebSocketHandler struct {
	notificationService *service.NotificationService
	hub                 *ws.Hub
	presenceCache       *cache.PresenceCache
}

func NewWebSocketHandler(notificationService *service.NotificationService, hub *ws.Hub, presenceCache *cache.PresenceCache) *WebSocketHandler {
	return &WebSocketHandler{
		notificationService: notificationService,
		hub:                 hub,
		presenceCache:       presenceCache,
	}
}

// GetHub returns the hub instance (useful for sending messages from other handlers)
func (h *WebSocketHandler) GetHub() *ws.Hub {
	return h.hub
}

func (h *WebSocketHandler) HandleWebSocket(c *websocket.Conn) {
	userID := c.Locals("userID").(uint)
	role, _ := c.Locals("role").(string)
	connID := uuid.NewString()

	// Register the connection; it joins its user room and every category
	// room the role permits
	allowedCategories := h.hub.Register(userID, connID, role, c)

	if err := h.presenceCache.ConnectionOpened(userID, h.hub.ConnectionCount(userID)); err != nil {
		log.Printf("Failed to record presence for user %d: %v", userID, err)
	}

	defer func() {
		h.hub.Unregister(connID)
		if err := h.presenceCache.ConnectionClosed(userID, h.hub.ConnectionCount(userID)); err != nil {
			log.Printf("Failed to clear presence for user %d: %v", userID, err)
		}
		log.Printf("User %d disconnected connection %s", userID, connID)
	}()

	// Replay whatever queued up while the user was offline, then complete
	// the handshake with the replayed count
	replayed, err := h.notificationService.Replay(userID)
	if err != nil {
		log.Printf("Failed to replay pending notifications for user %d: %v", userID, err)
	}

	if err := h.hub.WriteToConnection(connID, ws.EventConnected, map[string]interface{}{
		"pending_replayed_count": replayed,
		"allowed_categories":     allowedCategories,
	}); err != nil {
		log.Printf("Failed to send handshake to user %d: %v", userID, err)
		return
	}

	log.Printf("User %d connected via WebSocket (connection %s, replayed %d)", userID, connID, replayed)

	ctx := &ws.MessageContext{
		UserID:              userID,
		ConnID:              connID,
		Role:                role,
		Hub:                 h.hub,
		NotificationService: h.notificationService,
	}

	// Handle incoming events
	for {
		_, messageBytes, err := c.ReadMessage()
		if err != nil {
			log.Printf("Error reading message from user %d: %v", userID, err)
			break
		}

		msg, err := ws.Deserialize(messageBytes)
		if err != nil {
			log.Printf("Error deserializing message from user %d: %v", userID, err)
			ws.SendError(h.hub, connID, "invalid_message", "Invalid message format", err.Error())
			continue
		}

		if err := msg.Process(ctx); err != nil {
			log.Printf("Error processing message %s from user %d: %v", msg.GetType(), userID, err)
			ws.SendError(h.hub, connID, "processing_failed", "Failed to process message", err.Error())
		}
	}
}
