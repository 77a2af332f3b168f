// internal/service/inventory/infrastructure/cache.go
package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"meridian/internal/pkg/redis"
	"meridian/internal/service/inventory/domain"
)

const cacheKeyPrefix = "inventory:view:"

// RedisViewCache 把库存视图以 JSON 存进 Redis，实现 domain.ViewCache。
type RedisViewCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisViewCache(client *redis.Client, ttl time.Duration) *RedisViewCache {
	return &RedisViewCache{client: client, ttl: ttl}
}

func cacheKey(productID int64) string {
	return fmt.Sprintf("%s%d", cacheKeyPrefix, productID)
}

func (c *RedisViewCache) Get(ctx context.Context, productID int64) (*domain.View, bool, error) {
	raw, ok, err := c.client.Get(ctx, cacheKey(productID))
	if err != nil || !ok {
		return nil, false, err
	}
	var view domain.View
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		// 缓存内容损坏按 miss 处理，下一次 Set 会覆盖
		return nil, false, nil
	}
	return &view, true, nil
}

func (c *RedisViewCache) Set(ctx context.Context, view *domain.View) error {
	raw, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(view.ProductID), string(raw), c.ttl)
}

func (c *RedisViewCache) Evict(ctx context.Context, productID int64) error {
	return c.client.Del(ctx, cacheKey(productID))
}
