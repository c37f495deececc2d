package validation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pulsegrid/notify-backend/internal/models"
)

func TestValidateNotification(t *testing.T) {
	userID := uint(1)
	category := models.CategorySystem
	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name    string
		mutate  func(n *models.Notification)
		wantErr bool
	}{
		{"valid direct", func(n *models.Notification) {}, false},
		{"valid category target", func(n *models.Notification) {
			n.TargetUserID = nil
			n.Category = category
			n.TargetCategory = &category
		}, false},
		{"valid with expiry", func(n *models.Notification) {
			n.ExpiresAt = &future
		}, false},
		{"nil notification", nil, true},
		{"empty title", func(n *models.Notification) {
			n.Title = ""
		}, true},
		{"whitespace title", func(n *models.Notification) {
			n.Title = "   "
		}, true},
		{"title too long", func(n *models.Notification) {
			n.Title = strings.Repeat("a", MaxTitleLength+1)
		}, true},
		{"title at limit", func(n *models.Notification) {
			n.Title = strings.Repeat("a", MaxTitleLength)
		}, false},
		{"unknown category", func(n *models.Notification) {
			n.Category = models.Category("gossip")
		}, true},
		{"unknown priority", func(n *models.Notification) {
			n.Priority = models.Priority("urgent")
		}, true},
		{"empty priority tolerated", func(n *models.Notification) {
			n.Priority = ""
		}, false},
		{"unknown type", func(n *models.Notification) {
			n.Type = models.NotificationType("fatal")
		}, true},
		{"no target", func(n *models.Notification) {
			n.TargetUserID = nil
		}, true},
		{"both targets", func(n *models.Notification) {
			n.TargetCategory = &category
		}, true},
		{"target category mismatch", func(n *models.Notification) {
			n.TargetUserID = nil
			admin := models.CategoryAdmin
			n.TargetCategory = &admin
		}, true},
		{"born expired", func(n *models.Notification) {
			n.ExpiresAt = &past
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n *models.Notification
			if tt.mutate != nil {
				n = &models.Notification{
					Category:     models.CategorySystem,
					Priority:     models.PriorityNormal,
					Type:         models.TypeInfo,
					Title:        "a title",
					TargetUserID: &userID,
				}
				tt.mutate(n)
			}
			err := ValidateNotification(n)
			if tt.wantErr && !errors.Is(err, ErrInvalidMessage) {
				t.Errorf("expected ErrInvalidMessage, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		raw   string
		want  models.Category
		valid bool
	}{
		{"system", models.CategorySystem, true},
		{"  Security ", models.CategorySecurity, true},
		{"ADMIN", models.CategoryAdmin, true},
		{"gossip", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := NormalizeCategory(tt.raw)
		if ok != tt.valid {
			t.Errorf("NormalizeCategory(%q) valid = %v, want %v", tt.raw, ok, tt.valid)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
