package validation

import (
	"errors"
	"strings"
	"time"

	"github.com/pulsegrid/notify-backend/internal/models"
)

const MaxTitleLength = 255

// ErrInvalidMessage is returned for malformed or internally inconsistent
// notifications. Raised before any persistence happens, so callers can
// assume no partial writes.
var ErrInvalidMessage = errors.New("invalid notification message")

// ValidateNotification rejects malformed or internally inconsistent
// notifications before anything is persisted.
func ValidateNotification(n *models.Notification) error {
	if n == nil {
		return ErrInvalidMessage
	}
	if strings.TrimSpace(n.Title) == "" || len(n.Title) > MaxTitleLength {
		return ErrInvalidMessage
	}
	if !n.Category.Valid() {
		return ErrInvalidMessage
	}
	if n.Priority != "" && !n.Priority.Valid() {
		return ErrInvalidMessage
	}
	if n.Type != "" && !n.Type.Valid() {
		return ErrInvalidMessage
	}

	// Exactly one of the two target forms must be set
	if n.TargetUserID == nil && n.TargetCategory == nil {
		return ErrInvalidMessage
	}
	if n.TargetUserID != nil && n.TargetCategory != nil {
		return ErrInvalidMessage
	}
	if n.TargetCategory != nil && *n.TargetCategory != n.Category {
		return ErrInvalidMessage
	}

	// A message born expired must never be accepted for delivery
	if n.ExpiresAt != nil && n.ExpiresAt.Before(time.Now()) {
		return ErrInvalidMessage
	}
	return nil
}

// NormalizeCategory maps a client-supplied category string onto the
// enumeration, or returns false for anything unknown.
func NormalizeCategory(raw string) (models.Category, bool) {
	category := models.Category(strings.ToLower(strings.TrimSpace(raw)))
	return category, category.Valid()
}
