package models

import (
	"time"
)

// DeliveryRecord tracks delivery and read state for one (notification, user)
// pair. Exactly one row exists per pair, created together with the
// notification. A record with DeliveredAt unset and Skipped false is pending
// and eligible for replay on the user's next connect.
type DeliveryRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	NotificationID uint         `gorm:"not null;uniqueIndex:idx_notification_user" json:"notification_id"`
	Notification   Notification `gorm:"foreignKey:NotificationID;constraint:OnDelete:CASCADE" json:"notification"`

	UserID uint `gorm:"not null;uniqueIndex:idx_notification_user;index:idx_delivery_user_pending" json:"user_id"`

	DeliveredAt *time.Time `gorm:"index:idx_delivery_user_pending" json:"delivered_at"`
	ReadAt      *time.Time `json:"read_at"`

	// Set when a pending record expired before it could be replayed. Kept
	// instead of deleted so audit history survives until cleanup.
	Skipped bool `gorm:"default:false" json:"skipped"`

	DeliveryAttempts int        `gorm:"default:0" json:"delivery_attempts"`
	LastAttemptAt    *time.Time `json:"last_attempt_at"`
}

// Pending reports whether the record still awaits delivery.
func (r *DeliveryRecord) Pending() bool {
	return r.DeliveredAt == nil && !r.Skipped
}
