package cache

import (
	"fmt"
	"time"

	"github.com/pulsegrid/notify-backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// TTL constants for different cache types
const (
	HistoryTTL     = 5 * time.Minute
	UnreadCountTTL = 1 * time.Minute
)

// NotificationCache caches per-user notification history. All methods are
// nil-safe so the service runs unchanged when Redis is unavailable.
type NotificationCache struct {
	redis *RedisCache
}

func NewNotificationCache(redis *RedisCache) *NotificationCache {
	return &NotificationCache{redis: redis}
}

func historyKey(userID uint, limit int) string {
	return fmt.Sprintf("notif:history:%d:%d", userID, limit)
}

func unreadKey(userID uint) string {
	return fmt.Sprintf("notif:unread:%d", userID)
}

// GetHistory retrieves a cached history page.
func (nc *NotificationCache) GetHistory(userID uint, limit int) ([]models.Notification, bool) {
	if nc == nil || nc.redis == nil {
		return nil, false
	}
	data, err := nc.redis.Get(historyKey(userID, limit))
	if err != nil || data == nil {
		return nil, false
	}

	var notifications []models.Notification
	if err := msgpack.Unmarshal(data, &notifications); err != nil {
		return nil, false
	}
	return notifications, true
}

// SetHistory caches a history page.
func (nc *NotificationCache) SetHistory(userID uint, limit int, notifications []models.Notification) {
	if nc == nil || nc.redis == nil {
		return
	}
	data, err := msgpack.Marshal(notifications)
	if err != nil {
		return
	}
	nc.redis.Set(historyKey(userID, limit), data, HistoryTTL)
}

// GetUnreadCount retrieves a cached unread counter.
func (nc *NotificationCache) GetUnreadCount(userID uint) (int64, bool) {
	if nc == nil || nc.redis == nil {
		return 0, false
	}
	data, err := nc.redis.Get(unreadKey(userID))
	if err != nil || data == nil {
		return 0, false
	}
	var count int64
	if err := msgpack.Unmarshal(data, &count); err != nil {
		return 0, false
	}
	return count, true
}

func (nc *NotificationCache) SetUnreadCount(userID uint, count int64) {
	if nc == nil || nc.redis == nil {
		return
	}
	data, err := msgpack.Marshal(count)
	if err != nil {
		return
	}
	nc.redis.Set(unreadKey(userID), data, UnreadCountTTL)
}

// Invalidate drops every cached entry for a user. Called after any send,
// replay, or read acknowledgement touching that user.
func (nc *NotificationCache) Invalidate(userID uint) {
	if nc == nil || nc.redis == nil {
		return
	}
	nc.redis.DeletePattern(fmt.Sprintf("notif:history:%d:*", userID))
	nc.redis.Delete(unreadKey(userID))
}
