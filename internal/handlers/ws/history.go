package ws

import (
	"github.com/pulsegrid/notify-backend/internal/models"
)

// MessageHistory requests the caller's recent notification history.
type MessageHistory struct {
	Limit int `json:"limit"`
}

func (msg *MessageHistory) GetType() string {
	return "request_notification_history"
}

func (msg *MessageHistory) Process(ctx *MessageContext) error {
	notifications, err := ctx.NotificationService.GetUserNotifications(ctx.UserID, msg.Limit)
	if err != nil {
		return err
	}

	responses := make([]models.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		responses = append(responses, notifications[i].ToResponse())
	}

	return ctx.Hub.WriteToConnection(ctx.ConnID, EventHistory, map[string]interface{}{
		"messages": responses,
		"count":    len(responses),
	})
}

// MessageMarkRead acknowledges one notification as read.
type MessageMarkRead struct {
	NotificationID string `json:"notification_id"`
}

func (msg *MessageMarkRead) GetType() string {
	return "mark_read"
}

func (msg *MessageMarkRead) Process(ctx *MessageContext) error {
	if msg.NotificationID == "" {
		return nil
	}
	return ctx.NotificationService.MarkRead(msg.NotificationID, ctx.UserID)
}
