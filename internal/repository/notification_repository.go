package repository

import (
	"time"

	"github.com/pulsegrid/notify-backend/internal/models"
	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateWithRecords persists the notification and one delivery record per
// recipient in a single transaction. Either everything commits or nothing
// does, so a crash never leaves a notification without its records.
func (r *NotificationRepository) CreateWithRecords(notification *models.Notification, recipientIDs []uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(notification).Error; err != nil {
			return err
		}
		for _, userID := range recipientIDs {
			record := &models.DeliveryRecord{
				NotificationID: notification.ID,
				UserID:         userID,
			}
			if err := tx.Create(record).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *NotificationRepository) FindByID(id uint) (*models.Notification, error) {
	var notification models.Notification
	err := r.db.First(&notification, id).Error
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *NotificationRepository) FindByPublicID(publicID string) (*models.Notification, error) {
	var notification models.Notification
	err := r.db.Where("public_id = ?", publicID).First(&notification).Error
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

// ListForUser returns the user's notification history, newest first,
// with the user's read state joined in via the delivery record.
func (r *NotificationRepository) ListForUser(userID uint, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.
		Joins("JOIN delivery_records ON delivery_records.notification_id = notifications.id").
		Where("delivery_records.user_id = ?", userID).
		Order("notifications.created_at DESC, notifications.id DESC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

func (r *NotificationRepository) CountAll() (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).Count(&count).Error
	return count, err
}

// FindCleanupCandidates returns expired notifications whose recipients have
// all either received the message or been marked skipped. Records that are
// still pending keep their notification alive until replay has had a chance
// to mark them skipped.
func (r *NotificationRepository) FindCleanupCandidates(now time.Time, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.
		Preload("DeliveryRecords").
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Where("NOT EXISTS (SELECT 1 FROM delivery_records WHERE delivery_records.notification_id = notifications.id AND delivery_records.delivered_at IS NULL AND delivery_records.skipped = false)").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

// DeleteWithRecords hard-deletes notifications and their delivery records
// together, returning how many notifications were removed.
func (r *NotificationRepository) DeleteWithRecords(ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var removed int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("notification_id IN ?", ids).Delete(&models.DeliveryRecord{}).Error; err != nil {
			return err
		}
		res := tx.Unscoped().Where("id IN ?", ids).Delete(&models.Notification{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return nil
	})
	return removed, err
}
