package ws

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/pulsegrid/notify-backend/internal/service"
)

// Outbound event types
const (
	EventConnected    = "connected"
	EventNotification = "notification"
	EventHistory      = "history"
	EventSubscribed   = "subscribed"
	EventPong         = "pong"
	EventError        = "error"
)

// MessageContext provides all dependencies needed for message processing.
// Replies go through the hub by connection id so every write takes the
// connection's write lock; handlers never touch the socket directly.
type MessageContext struct {
	UserID              uint
	ConnID              string
	Role                string
	Hub                 *Hub
	NotificationService *service.NotificationService
}

// Message interface for all inbound WebSocket event types
type Message interface {
	GetType() string
	Process(ctx *MessageContext) error
}

// SerializedMessage is the wire format wrapper
type SerializedMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ErrorResponse is the payload sent when message processing fails
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func ToJson(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

func FromJson(jsonBytes []byte, msg Message) error {
	return json.Unmarshal(jsonBytes, msg)
}

func CreateMessage(msgType string, typeRegistry map[string]reflect.Type) (Message, error) {
	msgTypeReflect, ok := typeRegistry[msgType]
	if !ok {
		return nil, fmt.Errorf("unknown message type: %s", msgType)
	}

	instance := reflect.New(msgTypeReflect).Interface()
	return instance.(Message), nil
}

// SendError sends an error frame to one connection through the hub's
// synchronized write path.
func SendError(hub *Hub, connID, code, message, details string) error {
	return hub.WriteToConnection(connID, EventError, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}
