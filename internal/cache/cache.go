// Package cache provides an optional Redis-backed cache for day-level slot
// listings. A nil SlotCache is safe to use and caches nothing.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"slotbook/internal/model"
)

// SlotCache caches a business's slots per calendar day.
type SlotCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// New constructs a slot cache. Returns nil when client is nil or ttl is not
// positive, which disables caching.
func New(client *redis.Client, ttl time.Duration) *SlotCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &SlotCache{redis: client, ttl: ttl}
}

func dayKey(businessID int64, date time.Time) string {
	return fmt.Sprintf("slots:%d:%s", businessID, date.Format("2006-01-02"))
}

// GetDay returns the cached slot list for a business+day, or ok=false on
// miss or any cache error.
func (c *SlotCache) GetDay(ctx context.Context, businessID int64, date time.Time) ([]model.Slot, bool) {
	if c == nil {
		return nil, false
	}
	val, err := c.redis.Get(ctx, dayKey(businessID, date)).Result()
	if err != nil {
		return nil, false
	}
	var out []model.Slot
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		return nil, false
	}
	return out, true
}

// SetDay stores the slot list for a business+day. Cache errors are ignored;
// the store remains authoritative.
func (c *SlotCache) SetDay(ctx context.Context, businessID int64, date time.Time, slots []model.Slot) {
	if c == nil {
		return
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, dayKey(businessID, date), data, c.ttl).Err()
}

// InvalidateDay drops the cached list for a business+day. Called after any
// write touching that day's slots.
func (c *SlotCache) InvalidateDay(ctx context.Context, businessID int64, date time.Time) {
	if c == nil {
		return
	}
	_ = c.redis.Del(ctx, dayKey(businessID, date)).Err()
}

// InvalidateBusiness drops every cached day for a business. Used by bulk
// operations (batch create, regeneration, past-slot cleanup).
func (c *SlotCache) InvalidateBusiness(ctx context.Context, businessID int64) {
	if c == nil {
		return
	}
	pattern := fmt.Sprintf("slots:%d:*", businessID)
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		_ = c.redis.Del(ctx, iter.Val()).Err()
	}
}
