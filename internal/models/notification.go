package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Category string

const (
	CategorySystem      Category = "system"
	CategoryAdmin       Category = "admin"
	CategoryUser        Category = "user"
	CategoryJob         Category = "job"
	CategoryPlatform    Category = "platform"
	CategorySecurity    Category = "security"
	CategoryMaintenance Category = "maintenance"
	CategoryStorage     Category = "storage"
	CategoryDashboard   Category = "dashboard"
	CategoryMonitoring  Category = "monitoring"
	CategoryPerformance Category = "performance"
	CategoryHealth      Category = "health"
)

// Categories lists every valid category, in no particular order.
var Categories = []Category{
	CategorySystem, CategoryAdmin, CategoryUser, CategoryJob,
	CategoryPlatform, CategorySecurity, CategoryMaintenance, CategoryStorage,
	CategoryDashboard, CategoryMonitoring, CategoryPerformance, CategoryHealth,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank orders priorities for queue tie-breaks. Higher is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type NotificationType string

const (
	TypeInfo    NotificationType = "info"
	TypeSuccess NotificationType = "success"
	TypeWarning NotificationType = "warning"
	TypeError   NotificationType = "error"
)

func (t NotificationType) Valid() bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError:
		return true
	}
	return false
}

// Notification is one immutable message. Either TargetUserID is set (direct
// delivery) or TargetCategory is set (role/category broadcast), never both.
type Notification struct {
	ID        uint           `gorm:"primarykey" json:"-"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Stable identifier exposed on the wire
	PublicID string `gorm:"type:varchar(36);uniqueIndex;not null" json:"id"`

	Category Category         `gorm:"type:varchar(20);not null;index" json:"category"`
	Priority Priority         `gorm:"type:varchar(10);default:'normal'" json:"priority"`
	Type     NotificationType `gorm:"type:varchar(10);default:'info'" json:"type"`

	Title string `gorm:"type:varchar(255);not null" json:"title"`
	Body  string `gorm:"type:text" json:"body"`

	// Category-specific structured fields, stored as JSON text
	DataJSON string `gorm:"type:text" json:"-"`

	TargetUserID   *uint     `gorm:"index" json:"target_user_id,omitempty"`
	TargetCategory *Category `gorm:"type:varchar(20)" json:"target_category,omitempty"`

	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`

	DeliveryRecords []DeliveryRecord `gorm:"foreignKey:NotificationID" json:"-"`
}

// Expired reports whether the notification must no longer be delivered fresh.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && n.ExpiresAt.Before(now)
}

// Data decodes the structured payload. Returns nil for an empty payload.
func (n *Notification) Data() map[string]interface{} {
	if n.DataJSON == "" {
		return nil
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(n.DataJSON), &data); err != nil {
		return nil
	}
	return data
}

func (n *Notification) SetData(data map[string]interface{}) error {
	if data == nil {
		n.DataJSON = ""
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	n.DataJSON = string(raw)
	return nil
}

type NotificationResponse struct {
	ID        string                 `json:"id"`
	Category  Category               `json:"category"`
	Priority  Priority               `json:"priority"`
	Type      NotificationType       `json:"type"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
}

func (n *Notification) ToResponse() NotificationResponse {
	return NotificationResponse{
		ID:        n.PublicID,
		Category:  n.Category,
		Priority:  n.Priority,
		Type:      n.Type,
		Title:     n.Title,
		Body:      n.Body,
		Data:      n.Data(),
		CreatedAt: n.CreatedAt,
		ExpiresAt: n.ExpiresAt,
	}
}

func newNotification(category Category, target *uint, title, body string) *Notification {
	return &Notification{
		PublicID:     uuid.NewString(),
		Category:     category,
		Priority:     PriorityNormal,
		Type:         TypeInfo,
		Title:        title,
		Body:         body,
		TargetUserID: target,
	}
}

// NewUserNotification builds a direct notification for one user.
func NewUserNotification(userID uint, title, body string) *Notification {
	return newNotification(CategoryUser, &userID, title, body)
}

// NewSystemNotification builds a system-wide broadcast visible to every
// authenticated connection.
func NewSystemNotification(title, body string) *Notification {
	n := newNotification(CategorySystem, nil, title, body)
	target := CategorySystem
	n.TargetCategory = &target
	return n
}

// NewAdminAlert builds an admin-only broadcast. Severity maps onto priority.
func NewAdminAlert(title, body string, priority Priority) *Notification {
	n := newNotification(CategoryAdmin, nil, title, body)
	target := CategoryAdmin
	n.TargetCategory = &target
	n.Priority = priority
	if priority == PriorityCritical {
		n.Type = TypeError
	} else if priority == PriorityHigh {
		n.Type = TypeWarning
	}
	return n
}

// NewSecurityAlert builds an admin-visible security event notification.
func NewSecurityAlert(title, body string, details map[string]interface{}) *Notification {
	n := newNotification(CategorySecurity, nil, title, body)
	target := CategorySecurity
	n.TargetCategory = &target
	n.Priority = PriorityHigh
	n.Type = TypeWarning
	n.SetData(details)
	return n
}

// NewJobProgress builds a per-user job progress update.
func NewJobProgress(userID uint, title string, progress int, jobID string) *Notification {
	n := newNotification(CategoryJob, &userID, title, "")
	n.SetData(map[string]interface{}{
		"job_id":   jobID,
		"progress": progress,
	})
	return n
}

// NewStorageAlert builds a per-user storage usage notification.
func NewStorageAlert(userID uint, title, body string, usedBytes, limitBytes int64) *Notification {
	n := newNotification(CategoryStorage, &userID, title, body)
	n.Priority = PriorityHigh
	n.Type = TypeWarning
	n.SetData(map[string]interface{}{
		"used_bytes":  usedBytes,
		"limit_bytes": limitBytes,
	})
	return n
}

// NewMaintenanceNotice builds a maintenance broadcast with an expiry, so a
// stale notice is never replayed after the window has passed.
func NewMaintenanceNotice(title, body string, until time.Time) *Notification {
	n := newNotification(CategoryMaintenance, nil, title, body)
	target := CategoryMaintenance
	n.TargetCategory = &target
	n.ExpiresAt = &until
	return n
}
