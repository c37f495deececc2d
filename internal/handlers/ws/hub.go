package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/pulsegrid/notify-backend/internal/models"
	"github.com/pulsegrid/notify-backend/internal/routing"
)

// ErrNoLiveConnection is returned when every write to a user's live
// connections failed. A user with no connections at all is not an error.
var ErrNoLiveConnection = errors.New("no live connection accepted the write")

// ClientConnection wraps a WebSocket connection with registry metadata.
// Writes to the underlying connection are serialized through writeMux.
type ClientConnection struct {
	ID          string
	Conn        *websocket.Conn
	UserID      uint
	Role        string
	ConnectedAt time.Time
	LastPong    time.Time
	PingTicker  *time.Ticker
	CloseChan   chan struct{}

	writeMux sync.Mutex

	// Categories this connection currently receives. Always a subset of
	// what the permission router allows for the connection's role.
	categories map[models.Category]bool
}

func (c *ClientConnection) writeEnvelope(eventType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if c.Conn == nil {
		// Registry-only connection with no socket attached
		return nil
	}
	envelope := SerializedMessage{Type: eventType, Payload: raw}
	c.writeMux.Lock()
	defer c.writeMux.Unlock()
	return c.Conn.WriteJSON(envelope)
}

// Hub is the connection registry and the only component that touches the
// websocket transport. It indexes live connections by connection id, by
// user (the user room) and by category (the category rooms).
type Hub struct {
	mux           sync.RWMutex
	connections   map[string]*ClientConnection
	userIndex     map[uint]map[string]*ClientConnection
	categoryIndex map[models.Category]map[string]*ClientConnection

	pingInterval time.Duration
	pongTimeout  time.Duration
	stopChan     chan struct{}
}

// NewHub creates a hub and starts its health-check worker.
func NewHub() *Hub {
	hub := &Hub{
		connections:   make(map[string]*ClientConnection),
		userIndex:     make(map[uint]map[string]*ClientConnection),
		categoryIndex: make(map[models.Category]map[string]*ClientConnection),
		pingInterval:  30 * time.Second,
		pongTimeout:   90 * time.Second,
		stopChan:      make(chan struct{}),
	}

	go hub.connectionHealthChecker()

	return hub
}

// Register adds a connection and joins it to its user room and to every
// category room its role permits. Registering the same connection id twice
// is a no-op. Returns the connection's category set.
func (h *Hub) Register(userID uint, connID, role string, conn *websocket.Conn) []models.Category {
	allowed := routing.AllowedCategories(role)

	h.mux.Lock()
	if existing, ok := h.connections[connID]; ok {
		categories := make([]models.Category, 0, len(existing.categories))
		for c := range existing.categories {
			categories = append(categories, c)
		}
		h.mux.Unlock()
		return categories
	}

	client := &ClientConnection{
		ID:          connID,
		Conn:        conn,
		UserID:      userID,
		Role:        role,
		ConnectedAt: time.Now(),
		LastPong:    time.Now(),
		PingTicker:  time.NewTicker(h.pingInterval),
		CloseChan:   make(chan struct{}),
		categories:  make(map[models.Category]bool, len(allowed)),
	}
	for _, category := range allowed {
		client.categories[category] = true
		if h.categoryIndex[category] == nil {
			h.categoryIndex[category] = make(map[string]*ClientConnection)
		}
		h.categoryIndex[category][connID] = client
	}

	h.connections[connID] = client
	if h.userIndex[userID] == nil {
		h.userIndex[userID] = make(map[string]*ClientConnection)
	}
	h.userIndex[userID][connID] = client
	total := len(h.connections)
	h.mux.Unlock()

	if conn != nil {
		conn.SetPongHandler(func(appData string) error {
			h.mux.Lock()
			if c, exists := h.connections[connID]; exists {
				c.LastPong = time.Now()
			}
			h.mux.Unlock()
			return nil
		})
		conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
		go h.pingRoutine(client)
	}

	log.Printf("Connection %s registered for user %d role=%s (total: %d)", connID, userID, role, total)
	return allowed
}

// Unregister removes a connection from every index. Safe to call for a
// connection that was never registered or was already removed.
func (h *Hub) Unregister(connID string) {
	h.mux.Lock()
	client, exists := h.connections[connID]
	if exists {
		if client.PingTicker != nil {
			client.PingTicker.Stop()
		}
		close(client.CloseChan)
		delete(h.connections, connID)
		if conns, ok := h.userIndex[client.UserID]; ok {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(h.userIndex, client.UserID)
			}
		}
		for category := range client.categories {
			if room, ok := h.categoryIndex[category]; ok {
				delete(room, connID)
				if len(room) == 0 {
					delete(h.categoryIndex, category)
				}
			}
		}
	}
	total := len(h.connections)
	h.mux.Unlock()

	if exists {
		log.Printf("Connection %s for user %d unregistered (total: %d)", connID, client.UserID, total)
	}
}

// Subscribe joins a connection to a category room if the permission router
// allows it. A denied request is logged and otherwise ignored, so the
// client learns nothing about which categories exist for other roles.
func (h *Hub) Subscribe(connID string, category models.Category) bool {
	h.mux.Lock()
	defer h.mux.Unlock()

	client, exists := h.connections[connID]
	if !exists {
		return false
	}
	if !routing.Allowed(client.Role, category) {
		log.Printf("Permission denied: connection %s (user %d, role %s) tried to subscribe to %q", connID, client.UserID, client.Role, category)
		return false
	}
	client.categories[category] = true
	if h.categoryIndex[category] == nil {
		h.categoryIndex[category] = make(map[string]*ClientConnection)
	}
	h.categoryIndex[category][connID] = client
	return true
}

// Unsubscribe leaves a category room. Unknown connections or categories
// are ignored.
func (h *Hub) Unsubscribe(connID string, category models.Category) {
	h.mux.Lock()
	defer h.mux.Unlock()

	client, exists := h.connections[connID]
	if !exists {
		return
	}
	delete(client.categories, category)
	if room, ok := h.categoryIndex[category]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(h.categoryIndex, category)
		}
	}
}

// Resolve returns the connection ids of the user's live connections that
// currently receive the category.
func (h *Hub) Resolve(userID uint, category models.Category) []string {
	h.mux.RLock()
	defer h.mux.RUnlock()

	var ids []string
	for connID, client := range h.userIndex[userID] {
		if client.categories[category] {
			ids = append(ids, connID)
		}
	}
	return ids
}

// SendToUser delivers a notification payload to every live connection of
// the user that receives the category. Returns how many connections were
// reached; zero with nil error means the user is offline for this category.
// Dead connections found while writing are unregistered.
func (h *Hub) SendToUser(userID uint, category models.Category, payload interface{}) (int, error) {
	h.mux.RLock()
	targets := make([]*ClientConnection, 0, len(h.userIndex[userID]))
	for _, client := range h.userIndex[userID] {
		if client.categories[category] {
			targets = append(targets, client)
		}
	}
	h.mux.RUnlock()

	if len(targets) == 0 {
		return 0, nil
	}

	sent := 0
	for _, client := range targets {
		if err := client.writeEnvelope(EventNotification, payload); err != nil {
			log.Printf("Error sending notification to connection %s (user %d): %v", client.ID, userID, err)
			h.Unregister(client.ID)
			continue
		}
		sent++
	}
	if sent == 0 {
		return 0, ErrNoLiveConnection
	}
	return sent, nil
}

// BroadcastToCategory delivers a payload to every connection in a category
// room, once per connection, and reports connections reached per user. An
// empty room is a normal outcome and returns an empty map.
func (h *Hub) BroadcastToCategory(category models.Category, payload interface{}) (map[uint]int, error) {
	h.mux.RLock()
	targets := make([]*ClientConnection, 0, len(h.categoryIndex[category]))
	for _, client := range h.categoryIndex[category] {
		targets = append(targets, client)
	}
	h.mux.RUnlock()

	reached := make(map[uint]int)
	for _, client := range targets {
		if err := client.writeEnvelope(EventNotification, payload); err != nil {
			log.Printf("Error broadcasting %q to connection %s (user %d): %v", category, client.ID, client.UserID, err)
			h.Unregister(client.ID)
			continue
		}
		reached[client.UserID]++
	}
	return reached, nil
}

// WriteToConnection writes one envelope to a single connection, serialized
// through the connection's write lock. Every data frame to a client goes
// through here or SendToUser/BroadcastToCategory; the underlying websocket
// permits only one concurrent writer.
func (h *Hub) WriteToConnection(connID, eventType string, payload interface{}) error {
	h.mux.RLock()
	client, ok := h.connections[connID]
	h.mux.RUnlock()
	if !ok {
		return ErrNoLiveConnection
	}
	return client.writeEnvelope(eventType, payload)
}

// IsOnline checks whether a user has at least one live connection.
func (h *Hub) IsOnline(userID uint) bool {
	h.mux.RLock()
	defer h.mux.RUnlock()
	return len(h.userIndex[userID]) > 0
}

// ConnectionCount returns the number of live connections for a user.
func (h *Hub) ConnectionCount(userID uint) int {
	h.mux.RLock()
	defer h.mux.RUnlock()
	return len(h.userIndex[userID])
}

// OnlineUsers returns the ids of users with at least one live connection.
func (h *Hub) OnlineUsers() []uint {
	h.mux.RLock()
	defer h.mux.RUnlock()

	users := make([]uint, 0, len(h.userIndex))
	for userID := range h.userIndex {
		users = append(users, userID)
	}
	return users
}

// Count returns the total number of live connections.
func (h *Hub) Count() int {
	h.mux.RLock()
	defer h.mux.RUnlock()
	return len(h.connections)
}

// Stop shuts down the health-check worker.
func (h *Hub) Stop() {
	close(h.stopChan)
}

// pingRoutine sends periodic pings to keep one connection alive.
func (h *Hub) pingRoutine(client *ClientConnection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Ping routine recovered from panic for connection %s: %v", client.ID, r)
		}
	}()

	for {
		select {
		case <-client.CloseChan:
			return
		case <-client.PingTicker.C:
			client.writeMux.Lock()
			err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second))
			client.writeMux.Unlock()
			if err != nil {
				log.Printf("Ping failed for connection %s (user %d): %v", client.ID, client.UserID, err)
				h.Unregister(client.ID)
				return
			}
		}
	}
}

// connectionHealthChecker removes connections that stopped answering pings.
// Covers ungraceful disconnects that never produce a close frame.
func (h *Hub) connectionHealthChecker() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case <-ticker.C:
			h.mux.RLock()
			dead := make([]string, 0)
			now := time.Now()
			for connID, client := range h.connections {
				if now.Sub(client.LastPong) > h.pongTimeout {
					dead = append(dead, connID)
				}
			}
			h.mux.RUnlock()

			for _, connID := range dead {
				log.Printf("Removing dead connection %s (no pong received)", connID)
				h.Unregister(connID)
			}
		}
	}
}
