package fees

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CollectionCache keeps per-date collection totals in Redis so the dashboard
// poll does not hit Postgres every time. A nil cache is a valid no-op.
type CollectionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCollectionCache wraps a redis client. TTL bounds staleness between
// worker refreshes.
func NewCollectionCache(client *redis.Client, ttl time.Duration) *CollectionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CollectionCache{client: client, ttl: ttl}
}

func cacheKey(date string) string {
	return "feetrack:collection:" + date
}

// Get returns the cached summary for a date. Any redis error reads as a miss.
func (c *CollectionCache) Get(ctx context.Context, date string) (CollectionSummary, bool) {
	if c == nil || c.client == nil {
		return CollectionSummary{}, false
	}
	raw, err := c.client.Get(ctx, cacheKey(date)).Bytes()
	if err != nil {
		return CollectionSummary{}, false
	}
	var summary CollectionSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return CollectionSummary{}, false
	}
	return summary, true
}

// Set stores the summary for a date, best effort.
func (c *CollectionCache) Set(ctx context.Context, date string, summary CollectionSummary) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey(date), raw, c.ttl).Err()
}
