package routing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/blueboat-cloud/lighthouse/internal/app/domain/routing"
)

const defaultCacheTTL = 10 * time.Minute

// RedisCache keeps deployment routes in Redis so every gateway replica
// shares one cache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(subdomain string) string {
	return "lighthouse:route:" + subdomain
}

func (c *RedisCache) Get(ctx context.Context, subdomain string) (routing.Info, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(subdomain)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return routing.Info{}, false, nil
		}
		return routing.Info{}, false, err
	}
	var info routing.Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return routing.Info{}, false, nil
	}
	return info, true, nil
}

func (c *RedisCache) Set(ctx context.Context, subdomain string, info routing.Info) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(subdomain), raw, c.ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, subdomain string) error {
	return c.client.Del(ctx, cacheKey(subdomain)).Err()
}
