package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// 文档注释：进程内 LRU 缓存
// 背景：热点请求（省级列表、统计、常见检索词）在短周期内重复出现，进程内缓存避免重复查询与序列化。
// 约束：容量按条目计，超出时淘汰最久未访问的条目；ttl<=0 时使用构造时的默认 TTL；
// 读取不续期，过期条目在读取时视为未命中；不启动后台清理协程。
type LRU struct {
	c *ttlcache.Cache[string, []byte]
}

func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU{c: ttlcache.New[string, []byte](
		ttlcache.WithTTL[string, []byte](ttl),
		ttlcache.WithCapacity[string, []byte](uint64(capacity)),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)}
}

func (c *LRU) Name() string { return "lru" }

func (c *LRU) Get(_ context.Context, k string) ([]byte, bool) {
	it := c.c.Get(k)
	if it == nil || it.IsExpired() {
		return nil, false
	}
	return it.Value(), true
}

func (c *LRU) Set(_ context.Context, k string, v []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = ttlcache.DefaultTTL
	}
	c.c.Set(k, v, ttl)
}

// Len 当前条目数（含尚未清理的过期条目）
func (c *LRU) Len() int { return c.c.Len() }
