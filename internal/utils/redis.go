package utils

import (
	"context"
	"time"

	"cambo-gazetteer/internal/config"
	"cambo-gazetteer/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedis：按配置打开 Redis 客户端
// 约束：未启用时返回 nil；探活失败仅记录告警，由缓存层按未命中处理
func OpenRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	if !cfg.RedisEnabled {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr(), Password: cfg.RedisPass, DB: cfg.RedisDB})
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		logger.L().Warn("redis_ping_failed", "addr", cfg.RedisAddr(), "err", err)
	} else {
		logger.L().Info("redis_open_ok", "addr", cfg.RedisAddr(), "db", cfg.RedisDB)
	}
	return rdb
}
