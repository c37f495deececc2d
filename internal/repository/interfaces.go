package repository

import (
	"time"

	"github.com/pulsegrid/notify-backend/internal/models"
)

// UserRepositoryInterface defines the contract for user repository operations
type UserRepositoryInterface interface {
	Create(user *models.User) error
	FindByUsername(username string) (*models.User, error)
	FindByID(id uint) (*models.User, error)
	FindAdmins() ([]models.User, error)
	FindAllIDs() ([]uint, error)
}

// NotificationRepositoryInterface defines the contract for notification
// persistence. CreateWithRecords is the only write path producers go
// through; it persists the notification and one delivery record per
// recipient atomically.
type NotificationRepositoryInterface interface {
	CreateWithRecords(notification *models.Notification, recipientIDs []uint) error
	FindByID(id uint) (*models.Notification, error)
	FindByPublicID(publicID string) (*models.Notification, error)
	ListForUser(userID uint, limit int) ([]models.Notification, error)
	CountAll() (int64, error)
	FindCleanupCandidates(now time.Time, limit int) ([]models.Notification, error)
	DeleteWithRecords(ids []uint) (int64, error)
}

// DeliveryRecordRepositoryInterface defines the contract for per-recipient
// delivery state. A record is pending while delivered_at is null and
// skipped is false.
type DeliveryRecordRepositoryInterface interface {
	FindPendingForUser(userID uint) ([]models.DeliveryRecord, error)
	Find(notificationID, userID uint) (*models.DeliveryRecord, error)
	MarkDelivered(notificationID, userID uint, at time.Time) error
	MarkRead(notificationID, userID uint, at time.Time) error
	MarkSkipped(notificationID, userID uint) error
	IncrementAttempts(notificationID, userID uint, at time.Time) error
	CountPending() (int64, error)
	CountPendingForUser(userID uint) (int64, error)
	CountUnread() (int64, error)
	CountUnreadForUser(userID uint) (int64, error)
}
