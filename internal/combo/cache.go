package combo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// AvailabilityCache memoises MaxQuantity reads for the HTTP surface. The sale
// path never consults it; availability is re-derived against live stock there.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewAvailabilityCache instantiates the cache helper.
func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{client: client, ttl: ttl}
}

// MaxQuantity loads the cached value or populates it via the loader.
// Concurrent callers for the same combo share one loader invocation.
func (c *AvailabilityCache) MaxQuantity(ctx context.Context, comboID int64, loader func(context.Context) (int64, error)) (int64, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := c.key(comboID)
	if raw, err := c.client.Get(ctx, key).Result(); err == nil {
		if qty, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			return qty, nil
		}
	}
	value, err, _ := c.group.Do(key, func() (any, error) {
		qty, err := loader(ctx)
		if err != nil {
			return int64(0), err
		}
		if err := c.client.Set(ctx, key, strconv.FormatInt(qty, 10), c.ttl).Err(); err != nil {
			return qty, nil
		}
		return qty, nil
	})
	if err != nil {
		return 0, err
	}
	return value.(int64), nil
}

// Invalidate drops the cached availability for a combo.
func (c *AvailabilityCache) Invalidate(ctx context.Context, comboID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.key(comboID)).Err()
}

func (c *AvailabilityCache) key(comboID int64) string {
	return fmt.Sprintf("combo:availability:%d", comboID)
}
