package cache

import (
	"context"
	"errors"
	"time"

	"cambo-gazetteer/internal/logger"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "gz:"

// Redis：共享缓存，多实例部署时复用同一份响应
type Redis struct {
	rc  *redis.Client
	ttl time.Duration
}

// NewRedis：rc 为空返回 nil，调用方据此跳过该层
func NewRedis(rc *redis.Client, ttl time.Duration) *Redis {
	if rc == nil {
		return nil
	}
	return &Redis{rc: rc, ttl: ttl}
}

func (c *Redis) Name() string { return "redis" }

func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := c.rc.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.L().Debug("cache_redis_get_err", "key", key, "err", err)
		}
		return nil, false
	}
	return b, true
}

func (c *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.rc.Set(ctx, redisKeyPrefix+key, val, ttl).Err(); err != nil {
		logger.L().Debug("cache_redis_set_err", "key", key, "err", err)
	}
}
