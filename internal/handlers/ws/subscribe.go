package ws

import (
	"github.com/pulsegrid/notify-backend/internal/validation"
)

// MessageSubscribe asks to join a category room. A request for a category
// the role may not receive is acknowledged exactly like an unknown
// category, so the client cannot enumerate the permission table.
type MessageSubscribe struct {
	Category string `json:"category"`
}

func (msg *MessageSubscribe) GetType() string {
	return "subscribe_category"
}

func (msg *MessageSubscribe) Process(ctx *MessageContext) error {
	category, ok := validation.NormalizeCategory(msg.Category)
	if ok {
		ctx.Hub.Subscribe(ctx.ConnID, category)
	}
	// Same acknowledgement regardless of outcome
	return ctx.Hub.WriteToConnection(ctx.ConnID, EventSubscribed, map[string]string{
		"category": msg.Category,
	})
}

// MessageUnsubscribe leaves a category room.
type MessageUnsubscribe struct {
	Category string `json:"category"`
}

func (msg *MessageUnsubscribe) GetType() string {
	return "unsubscribe_category"
}

func (msg *MessageUnsubscribe) Process(ctx *MessageContext) error {
	if category, ok := validation.NormalizeCategory(msg.Category); ok {
		ctx.Hub.Unsubscribe(ctx.ConnID, category)
	}
	return nil
}
