package models

import (
	"testing"
	"time"
)

func TestCategoryValid(t *testing.T) {
	for _, category := range Categories {
		if !category.Valid() {
			t.Errorf("%q should be valid", category)
		}
	}
	for _, bad := range []Category{"", "gossip", "System"} {
		if bad.Valid() {
			t.Errorf("%q should be invalid", bad)
		}
	}
}

func TestPriorityRankOrdering(t *testing.T) {
	ordered := []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Rank() <= ordered[i-1].Rank() {
			t.Errorf("%q should outrank %q", ordered[i], ordered[i-1])
		}
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	n := &Notification{}
	if n.Expired(now) {
		t.Error("no expiry set means never expired")
	}
	n.ExpiresAt = &future
	if n.Expired(now) {
		t.Error("future expiry should not be expired")
	}
	n.ExpiresAt = &past
	if !n.Expired(now) {
		t.Error("past expiry should be expired")
	}
}

func TestDataRoundTrip(t *testing.T) {
	n := &Notification{}
	if n.Data() != nil {
		t.Error("empty payload should decode to nil")
	}

	if err := n.SetData(map[string]interface{}{"job_id": "abc", "progress": float64(40)}); err != nil {
		t.Fatalf("SetData failed: %v", err)
	}
	data := n.Data()
	if data["job_id"] != "abc" || data["progress"] != float64(40) {
		t.Errorf("decoded payload = %v", data)
	}

	if err := n.SetData(nil); err != nil {
		t.Fatalf("SetData(nil) failed: %v", err)
	}
	if n.DataJSON != "" {
		t.Error("nil payload should clear the stored JSON")
	}
}

func TestFactoriesSetExactlyOneTarget(t *testing.T) {
	until := time.Now().Add(time.Hour)
	tests := []struct {
		name         string
		notification *Notification
		category     Category
		direct       bool
	}{
		{"user notification", NewUserNotification(7, "t", "b"), CategoryUser, true},
		{"system notification", NewSystemNotification("t", "b"), CategorySystem, false},
		{"admin alert", NewAdminAlert("t", "b", PriorityCritical), CategoryAdmin, false},
		{"security alert", NewSecurityAlert("t", "b", nil), CategorySecurity, false},
		{"job progress", NewJobProgress(7, "t", 50, "job-1"), CategoryJob, true},
		{"storage alert", NewStorageAlert(7, "t", "b", 900, 1000), CategoryStorage, true},
		{"maintenance notice", NewMaintenanceNotice("t", "b", until), CategoryMaintenance, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := tt.notification
			if n.Category != tt.category {
				t.Errorf("category = %q, want %q", n.Category, tt.category)
			}
			if n.PublicID == "" {
				t.Error("factories must assign a public id")
			}
			if tt.direct {
				if n.TargetUserID == nil || *n.TargetUserID != 7 {
					t.Error("direct notification must target user 7")
				}
				if n.TargetCategory != nil {
					t.Error("direct notification must not carry a category target")
				}
			} else {
				if n.TargetCategory == nil || *n.TargetCategory != tt.category {
					t.Error("broadcast notification must target its own category")
				}
				if n.TargetUserID != nil {
					t.Error("broadcast notification must not carry a user target")
				}
			}
		})
	}
}

func TestAdminAlertSeverityMapping(t *testing.T) {
	if n := NewAdminAlert("t", "b", PriorityCritical); n.Type != TypeError {
		t.Errorf("critical alert type = %q, want %q", n.Type, TypeError)
	}
	if n := NewAdminAlert("t", "b", PriorityHigh); n.Type != TypeWarning {
		t.Errorf("high alert type = %q, want %q", n.Type, TypeWarning)
	}
	if n := NewAdminAlert("t", "b", PriorityNormal); n.Type != TypeInfo {
		t.Errorf("normal alert type = %q, want %q", n.Type, TypeInfo)
	}
}

func TestToResponseUsesPublicID(t *testing.T) {
	n := NewUserNotification(7, "title", "body")
	n.ID = 42
	n.SetData(map[string]interface{}{"k": "v"})

	resp := n.ToResponse()
	if resp.ID != n.PublicID {
		t.Errorf("response id = %q, want the public id %q", resp.ID, n.PublicID)
	}
	if resp.Title != "title" || resp.Body != "body" || resp.Category != CategoryUser {
		t.Errorf("response fields wrong: %+v", resp)
	}
	if resp.Data["k"] != "v" {
		t.Errorf("response data = %v", resp.Data)
	}
}

func TestDeliveryRecordPending(t *testing.T) {
	now := time.Now()
	record := &DeliveryRecord{NotificationID: 1, UserID: 1}
	if !record.Pending() {
		t.Error("fresh record should be pending")
	}
	record.Skipped = true
	if record.Pending() {
		t.Error("skipped record is not pending")
	}
	record.Skipped = false
	record.DeliveredAt = &now
	if record.Pending() {
		t.Error("delivered record is not pending")
	}
}
