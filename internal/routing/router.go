// Package routing holds the category/permission policy. It is the single
// source of truth for who may receive which notification category; both the
// hub's subscribe path and the delivery engine's resolve path consult it.
package routing

import (
	"strings"

	"github.com/pulsegrid/notify-backend/internal/models"
)

// adminOnly categories require an admin-equivalent role.
var adminOnly = map[models.Category]bool{
	models.CategoryAdmin:       true,
	models.CategorySecurity:    true,
	models.CategoryMonitoring:  true,
	models.CategoryPerformance: true,
	models.CategoryHealth:      true,
}

// public categories are delivered to every authenticated connection.
var public = map[models.Category]bool{
	models.CategorySystem:      true,
	models.CategoryMaintenance: true,
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// Allowed reports whether a connection with the given role may receive the
// given category. Unknown categories are never allowed.
func Allowed(role string, category models.Category) bool {
	if !category.Valid() {
		return false
	}
	if public[category] {
		return true
	}
	if adminOnly[category] {
		return normalizeRole(role) == models.RoleAdmin
	}
	// Remaining categories (user, job, platform, storage, dashboard) are
	// addressed to a specific user and permitted for every role.
	return true
}

// AllowedCategories returns the full category set a role may subscribe to.
func AllowedCategories(role string) []models.Category {
	allowed := make([]models.Category, 0, len(models.Categories))
	for _, category := range models.Categories {
		if Allowed(role, category) {
			allowed = append(allowed, category)
		}
	}
	return allowed
}
