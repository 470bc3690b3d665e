package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const unreadTTL = 5 * time.Minute

// UnreadCounter caches per-user unread notification counts in Redis. All
// operations are best effort: a nil or unreachable client degrades to cache
// misses, never to errors.
type UnreadCounter struct {
	client *redis.Client
}

// NewUnreadCounter wraps the client; a nil client disables the cache.
func NewUnreadCounter(client *redis.Client) *UnreadCounter {
	return &UnreadCounter{client: client}
}

// Get returns the cached count, or ok=false on miss.
func (c *UnreadCounter) Get(ctx context.Context, userID string) (int64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	val, err := c.client.Get(ctx, unreadKey(userID)).Result()
	if err != nil {
		return 0, false
	}
	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return count, true
}

// Set stores the count with a short TTL.
func (c *UnreadCounter) Set(ctx context.Context, userID string, count int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, unreadKey(userID), count, unreadTTL).Err()
}

// Invalidate drops the cached count after any mutation of the user's feed.
func (c *UnreadCounter) Invalidate(ctx context.Context, userID string) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, unreadKey(userID)).Err()
}

func unreadKey(userID string) string {
	return fmt.Sprintf("notif:unread:%s", userID)
}
