package cache

import (
	"fmt"
	"strconv"
	"time"
)

const (
	PresenceTTL = 90 * time.Second // Match pong timeout
)

// PresenceCache tracks live connection counts per user. A user is online
// while at least one connection is registered. Dashboards read the set;
// the per-user key carries a TTL so a crashed instance's entries expire.
type PresenceCache struct {
	redis *RedisCache
}

func NewPresenceCache(redis *RedisCache) *PresenceCache {
	return &PresenceCache{redis: redis}
}

func presenceKey(userID uint) string {
	return fmt.Sprintf("online:%d", userID)
}

// ConnectionOpened records one more live connection for the user.
func (pc *PresenceCache) ConnectionOpened(userID uint, connections int) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	if err := pc.redis.SetAdd("online:users", userID); err != nil {
		return err
	}
	return pc.redis.Set(presenceKey(userID), []byte(strconv.Itoa(connections)), PresenceTTL)
}

// ConnectionClosed records a connection going away; the user leaves the
// online set only when the last connection is gone.
func (pc *PresenceCache) ConnectionClosed(userID uint, connections int) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	if connections > 0 {
		return pc.redis.Set(presenceKey(userID), []byte(strconv.Itoa(connections)), PresenceTTL)
	}
	if err := pc.redis.SetRemove("online:users", userID); err != nil {
		return err
	}
	return pc.redis.Delete(presenceKey(userID))
}

// IsOnline checks presence from the cache view.
func (pc *PresenceCache) IsOnline(userID uint) bool {
	if pc == nil || pc.redis == nil {
		return false
	}
	return pc.redis.Exists(presenceKey(userID))
}

// OnlineUsers returns the cached set of online user IDs.
func (pc *PresenceCache) OnlineUsers() ([]string, error) {
	if pc == nil || pc.redis == nil {
		return nil, nil
	}
	return pc.redis.SetMembers("online:users")
}

// OnlineCount returns how many users are in the online set across every
// instance sharing this Redis.
func (pc *PresenceCache) OnlineCount() int64 {
	if pc == nil || pc.redis == nil {
		return 0
	}
	count, _ := pc.redis.SetCard("online:users")
	return count
}
