package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/event"
)

// DupCache is a best-effort fast path in front of the ledger claim: it
// remembers terminal event statuses so hot re-deliveries skip a round
// trip to postgres. Any cache miss or error falls through to the
// authoritative claim.
type DupCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewDupCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *DupCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DupCache{client: client, ttl: ttl, logger: logger}
}

func (c *DupCache) Seen(ctx context.Context, provider event.Provider, eventID string) (event.Status, bool) {
	val, err := c.client.Get(ctx, c.key(provider, eventID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("dup cache get", "error", err)
		}
		return "", false
	}
	return event.Status(val), true
}

func (c *DupCache) Remember(ctx context.Context, provider event.Provider, eventID string, status event.Status) {
	if err := c.client.Set(ctx, c.key(provider, eventID), string(status), c.ttl).Err(); err != nil {
		c.logger.Debug("dup cache set", "error", err)
	}
}

func (c *DupCache) key(provider event.Provider, eventID string) string {
	return fmt.Sprintf("webhook:event:%s:%s", provider, eventID)
}
