package repository

import (
	"time"

	"github.com/pulsegrid/notify-backend/internal/models"
	"gorm.io/gorm"
)

type DeliveryRecordRepository struct {
	db *gorm.DB
}

func NewDeliveryRecordRepository(db *gorm.DB) *DeliveryRecordRepository {
	return &DeliveryRecordRepository{db: db}
}

// FindPendingForUser returns the user's undelivered, unskipped records in
// notification creation order (strict per-user FIFO for replay), with
// priority breaking ties between equal creation times. The notification is
// preloaded because replay serializes it onto the wire.
func (r *DeliveryRecordRepository) FindPendingForUser(userID uint) ([]models.DeliveryRecord, error) {
	var records []models.DeliveryRecord
	err := r.db.
		Joins("JOIN notifications ON notifications.id = delivery_records.notification_id").
		Preload("Notification").
		Where("delivery_records.user_id = ? AND delivery_records.delivered_at IS NULL AND delivery_records.skipped = false", userID).
		Order("notifications.created_at ASC").
		Order("CASE notifications.priority WHEN 'critical' THEN 3 WHEN 'high' THEN 2 WHEN 'normal' THEN 1 ELSE 0 END DESC").
		Order("notifications.id ASC").
		Find(&records).Error
	return records, err
}

func (r *DeliveryRecordRepository) Find(notificationID, userID uint) (*models.DeliveryRecord, error) {
	var record models.DeliveryRecord
	err := r.db.Where("notification_id = ? AND user_id = ?", notificationID, userID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *DeliveryRecordRepository) MarkDelivered(notificationID, userID uint, at time.Time) error {
	return r.db.Model(&models.DeliveryRecord{}).
		Where("notification_id = ? AND user_id = ? AND delivered_at IS NULL", notificationID, userID).
		Update("delivered_at", at).Error
}

func (r *DeliveryRecordRepository) MarkRead(notificationID, userID uint, at time.Time) error {
	updates := map[string]interface{}{
		"read_at": at,
	}
	return r.db.Model(&models.DeliveryRecord{}).
		Where("notification_id = ? AND user_id = ? AND read_at IS NULL", notificationID, userID).
		Updates(updates).Error
}

// MarkSkipped flags an expired pending record so it is never retried, while
// keeping the row for audit history until cleanup removes it.
func (r *DeliveryRecordRepository) MarkSkipped(notificationID, userID uint) error {
	return r.db.Model(&models.DeliveryRecord{}).
		Where("notification_id = ? AND user_id = ? AND delivered_at IS NULL", notificationID, userID).
		Update("skipped", true).Error
}

func (r *DeliveryRecordRepository) IncrementAttempts(notificationID, userID uint, at time.Time) error {
	updates := map[string]interface{}{
		"delivery_attempts": gorm.Expr("delivery_attempts + 1"),
		"last_attempt_at":   at,
	}
	return r.db.Model(&models.DeliveryRecord{}).
		Where("notification_id = ? AND user_id = ?", notificationID, userID).
		Updates(updates).Error
}

func (r *DeliveryRecordRepository) CountPending() (int64, error) {
	var count int64
	err := r.db.Model(&models.DeliveryRecord{}).
		Where("delivered_at IS NULL AND skipped = false").
		Count(&count).Error
	return count, err
}

func (r *DeliveryRecordRepository) CountPendingForUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.DeliveryRecord{}).
		Where("user_id = ? AND delivered_at IS NULL AND skipped = false", userID).
		Count(&count).Error
	return count, err
}

func (r *DeliveryRecordRepository) CountUnread() (int64, error) {
	var count int64
	err := r.db.Model(&models.DeliveryRecord{}).
		Where("read_at IS NULL AND skipped = false").
		Count(&count).Error
	return count, err
}

func (r *DeliveryRecordRepository) CountUnreadForUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.DeliveryRecord{}).
		Where("user_id = ? AND read_at IS NULL AND skipped = false", userID).
		Count(&count).Error
	return count, err
}
