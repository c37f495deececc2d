package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pulsegrid/notify-backend/internal/httpx"
	"github.com/pulsegrid/notify-backend/internal/models"
	"github.com/pulsegrid/notify-backend/internal/service"
	"github.com/pulsegrid/notify-backend/internal/validation"
	"gorm.io/gorm"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
}

func NewNotificationHandler(notificationService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

type sendNotificationInput struct {
	TargetUserID uint                   `json:"target_user_id"`
	Category     string                 `json:"category"`
	Priority     string                 `json:"priority"`
	Type         string                 `json:"type"`
	Title        string                 `json:"title"`
	Body         string                 `json:"body"`
	Data         map[string]interface{} `json:"data"`
	ExpiresAt    *time.Time             `json:"expires_at"`
}

func (input *sendNotificationInput) build() (*models.Notification, error) {
	notification := models.NewUserNotification(input.TargetUserID, input.Title, input.Body)
	if input.Category != "" {
		category, ok := validation.NormalizeCategory(input.Category)
		if !ok {
			return nil, validation.ErrInvalidMessage
		}
		notification.Category = category
	}
	if input.Priority != "" {
		notification.Priority = models.Priority(input.Priority)
	}
	if input.Type != "" {
		notification.Type = models.NotificationType(input.Type)
	}
	notification.ExpiresAt = input.ExpiresAt
	if err := notification.SetData(input.Data); err != nil {
		return nil, validation.ErrInvalidMessage
	}
	return notification, nil
}

// SendNotification delivers a direct notification to one user.
// POST /api/notifications
func (h *NotificationHandler) SendNotification(c *fiber.Ctx) error {
	var input sendNotificationInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_body", "Invalid request body")
	}
	if input.TargetUserID == 0 {
		return httpx.BadRequest(c, "missing_target", "target_user_id is required")
	}

	notification, err := input.build()
	if err != nil {
		return httpx.BadRequest(c, "invalid_notification", "Invalid notification")
	}

	if err := h.notificationService.SendUserNotification(input.TargetUserID, notification); err != nil {
		return sendError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(notification.ToResponse())
}

type broadcastInput struct {
	Category  string                 `json:"category"`
	Priority  string                 `json:"priority"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data"`
	ExpiresAt *time.Time             `json:"expires_at"`
}

// BroadcastNotification fans a notification out to every user permitted for
// the category.
// POST /api/notifications/broadcast
func (h *NotificationHandler) BroadcastNotification(c *fiber.Ctx) error {
	var input broadcastInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_body", "Invalid request body")
	}
	category, ok := validation.NormalizeCategory(input.Category)
	if !ok {
		return httpx.BadRequest(c, "invalid_category", "Unknown category")
	}

	notification := &models.Notification{
		PublicID: uuid.NewString(),
		Category: category,
		Priority: models.PriorityNormal,
		Type:     models.TypeInfo,
		Title:    input.Title,
		Body:     input.Body,
	}
	notification.TargetCategory = &category
	if input.Priority != "" {
		notification.Priority = models.Priority(input.Priority)
	}
	if input.Type != "" {
		notification.Type = models.NotificationType(input.Type)
	}
	notification.ExpiresAt = input.ExpiresAt
	if err := notification.SetData(input.Data); err != nil {
		return httpx.BadRequest(c, "invalid_notification", "Invalid notification data")
	}

	if err := h.notificationService.Broadcast(notification, category); err != nil {
		return sendError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(notification.ToResponse())
}

type adminAlertInput struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Severity string `json:"severity"`
}

// SendAdminAlert raises an alert visible to every admin user.
// POST /api/admin/alerts
func (h *NotificationHandler) SendAdminAlert(c *fiber.Ctx) error {
	var input adminAlertInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_body", "Invalid request body")
	}

	priority := models.Priority(input.Severity)
	if input.Severity == "" {
		priority = models.PriorityHigh
	} else if !priority.Valid() {
		return httpx.BadRequest(c, "invalid_severity", "Unknown severity")
	}

	notification := models.NewAdminAlert(input.Title, input.Body, priority)
	if err := h.notificationService.SendAdminAlert(notification); err != nil {
		return sendError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(notification.ToResponse())
}

// GetNotifications returns the caller's notification history, newest first.
// GET /api/notifications?limit=
func (h *NotificationHandler) GetNotifications(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "missing_user", "Missing user context")
	}
	limit := c.QueryInt("limit", 50)

	notifications, err := h.notificationService.GetUserNotifications(userID, limit)
	if err != nil {
		return httpx.Internal(c, "history_failed")
	}

	responses := make([]models.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		responses = append(responses, notifications[i].ToResponse())
	}
	return c.JSON(fiber.Map{"notifications": responses, "count": len(responses)})
}

// MarkRead acknowledges one notification as read by the caller.
// POST /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "missing_user", "Missing user context")
	}
	publicID := c.Params("id")

	if err := h.notificationService.MarkRead(publicID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httpx.NotFound(c, "not_found", "Notification not found")
		}
		return httpx.Internal(c, "mark_read_failed")
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// GetUnreadCount returns how many notifications the caller has not read.
// GET /api/notifications/unread-count
func (h *NotificationHandler) GetUnreadCount(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "missing_user", "Missing user context")
	}
	count, err := h.notificationService.UnreadCount(userID)
	if err != nil {
		return httpx.Internal(c, "unread_count_failed")
	}
	return c.JSON(fiber.Map{"unread": count})
}

// GetStats reports delivery statistics and queue depths.
// GET /api/admin/notifications/stats
func (h *NotificationHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.notificationService.Stats()
	if err != nil {
		return httpx.Internal(c, "stats_failed")
	}
	return c.JSON(stats)
}

// Cleanup removes expired, fully-settled notifications.
// POST /api/admin/notifications/cleanup
func (h *NotificationHandler) Cleanup(c *fiber.Ctx) error {
	removed, err := h.notificationService.CleanupExpired()
	if err != nil {
		return httpx.Internal(c, "cleanup_failed")
	}
	return c.JSON(fiber.Map{"removed": removed})
}

func sendError(c *fiber.Ctx, err error) error {
	if errors.Is(err, validation.ErrInvalidMessage) {
		return httpx.BadRequest(c, "invalid_notification", "Invalid notification")
	}
	if errors.Is(err, service.ErrPermissionDenied) {
		return httpx.Forbidden(c, "category_not_permitted", "Recipient may not receive this category")
	}
	var persistence *service.PersistenceError
	if errors.As(err, &persistence) {
		return httpx.Internal(c, "persistence_failed")
	}
	return httpx.Internal(c, "send_failed")
}
