package routing

import (
	"testing"

	"github.com/pulsegrid/notify-backend/internal/models"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		category models.Category
		want     bool
	}{
		{"user receives user category", "user", models.CategoryUser, true},
		{"user receives job category", "user", models.CategoryJob, true},
		{"user receives storage category", "user", models.CategoryStorage, true},
		{"user receives system broadcast", "user", models.CategorySystem, true},
		{"user receives maintenance broadcast", "user", models.CategoryMaintenance, true},
		{"user denied admin category", "user", models.CategoryAdmin, false},
		{"user denied security category", "user", models.CategorySecurity, false},
		{"user denied monitoring category", "user", models.CategoryMonitoring, false},
		{"user denied performance category", "user", models.CategoryPerformance, false},
		{"user denied health category", "user", models.CategoryHealth, false},
		{"admin receives admin category", "admin", models.CategoryAdmin, true},
		{"admin receives security category", "admin", models.CategorySecurity, true},
		{"admin receives system broadcast", "admin", models.CategorySystem, true},
		{"admin receives user category", "admin", models.CategoryUser, true},
		{"role check is case insensitive", "Admin", models.CategorySecurity, true},
		{"role check trims whitespace", " admin ", models.CategoryHealth, true},
		{"unknown category always denied", "admin", models.Category("bogus"), false},
		{"empty role denied admin category", "", models.CategoryAdmin, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Allowed(tt.role, tt.category); got != tt.want {
				t.Errorf("Allowed(%q, %q) = %v, want %v", tt.role, tt.category, got, tt.want)
			}
		})
	}
}

func TestAllowedCategories(t *testing.T) {
	adminCategories := AllowedCategories("admin")
	if len(adminCategories) != len(models.Categories) {
		t.Errorf("admin should receive every category, got %d of %d", len(adminCategories), len(models.Categories))
	}

	userCategories := AllowedCategories("user")
	want := len(models.Categories) - 5 // admin, security, monitoring, performance, health
	if len(userCategories) != want {
		t.Errorf("user categories = %d, want %d", len(userCategories), want)
	}
	for _, c := range userCategories {
		if c == models.CategoryAdmin || c == models.CategorySecurity {
			t.Errorf("user category set must not contain %q", c)
		}
	}
}
