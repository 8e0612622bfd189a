package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keeps recent quotes in Redis so repeated conversions for the same
// pair and day skip the database. A nil Cache is a no-op.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(pair string, asOf time.Time) string {
	return fmt.Sprintf("fx:%s:%s", pair, asOf.Format("2006-01-02"))
}

// Get loads a cached quote. The bool reports whether the key was present.
func (c *Cache) Get(ctx context.Context, pair string, asOf time.Time) (Quote, bool, error) {
	if c == nil || c.client == nil {
		return Quote{}, false, nil
	}
	payload, err := c.client.Get(ctx, cacheKey(pair, asOf)).Bytes()
	if err == redis.Nil {
		return Quote{}, false, nil
	}
	if err != nil {
		return Quote{}, false, err
	}
	var q Quote
	if err := json.Unmarshal(payload, &q); err != nil {
		return Quote{}, false, err
	}
	return q, true, nil
}

// Set stores a quote under the requested pair and day. The stored quote may
// carry an earlier AsOf when no rate exists for the exact day.
func (c *Cache) Set(ctx context.Context, asOf time.Time, q Quote) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(q.Pair, asOf), raw, c.ttl).Err()
}

// Invalidate drops cached entries for the given quotes after an upsert.
func (c *Cache) Invalidate(ctx context.Context, quotes []Quote) error {
	if c == nil || c.client == nil || len(quotes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(quotes))
	for _, q := range quotes {
		keys = append(keys, cacheKey(q.Pair, q.AsOf))
	}
	return c.client.Del(ctx, keys...).Err()
}
