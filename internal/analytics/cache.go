package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"ticketdesk/internal/logger"
)

const summaryKey = "ticketdesk:dashboard:summary"

// SnapshotCache keeps the dashboard summary in Redis for a short TTL so the
// landing page does not recompute the aggregates on every refresh. All
// failures degrade to a cache miss.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewSnapshotCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl, log: log}
}

func (c *SnapshotCache) Get(ctx context.Context) (*DashboardSummary, bool) {
	payload, err := c.client.Get(ctx, summaryKey).Bytes()
	if err != nil {
		if err != redis.Nil && c.log != nil {
			c.log.Warn("CACHE", "Dashboard snapshot read failed: "+err.Error())
		}
		return nil, false
	}

	var summary DashboardSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		if c.log != nil {
			c.log.Warn("CACHE", "Dashboard snapshot is corrupt, ignoring: "+err.Error())
		}
		return nil, false
	}
	return &summary, true
}

func (c *SnapshotCache) Set(ctx context.Context, summary *DashboardSummary) {
	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, summaryKey, payload, c.ttl).Err(); err != nil && c.log != nil {
		c.log.Warn("CACHE", "Dashboard snapshot write failed: "+err.Error())
	}
}

// Invalidate drops the snapshot after any write that changes ticket data.
func (c *SnapshotCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, summaryKey).Err(); err != nil && c.log != nil {
		c.log.Warn("CACHE", "Dashboard snapshot delete failed: "+err.Error())
	}
}
