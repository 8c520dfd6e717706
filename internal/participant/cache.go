package participant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheTTL keeps scan lookups fast during a check-in rush without serving
// long-stale records.
const cacheTTL = 5 * time.Minute

// Cache is a redis-backed read cache for the direct-lookup path. All
// methods are best-effort: a cache miss or redis failure falls through to
// the store.
type Cache struct {
	client *redis.Client
}

// NewCache wraps a redis client; a nil client disables caching.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) key(id string) string { return "regdesk:participant:" + id }

// Get returns the cached participant, or nil on miss or error.
func (c *Cache) Get(ctx context.Context, id string) *Participant {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		return nil
	}
	var p Participant
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	return &p
}

// Put stores the participant; failures are ignored.
func (c *Cache) Put(ctx context.Context, p *Participant) {
	if c == nil || c.client == nil || p == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	c.client.Set(ctx, c.key(p.ID), raw, cacheTTL)
}

// Invalidate drops the cached record after a mutation.
func (c *Cache) Invalidate(ctx context.Context, id string) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(ctx, c.key(id))
}
