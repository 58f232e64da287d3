// 包 cache：响应缓存端口（键 → 序列化响应 + TTL），进程内 LRU 与 Redis 两种实现可叠加
package cache

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Cache：读失败一律视为未命中；写失败静默丢弃，缓存故障不影响主流程
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
	Name() string
}

// Layered：先查 L1，再查 L2；L2 命中回填 L1
type Layered struct {
	l1, l2 Cache
}

// NewLayered：任一层为空时直接返回另一层
func NewLayered(l1, l2 Cache) Cache {
	switch {
	case l1 == nil:
		return l2
	case l2 == nil:
		return l1
	}
	return &Layered{l1: l1, l2: l2}
}

func (c *Layered) Name() string { return c.l1.Name() + "+" + c.l2.Name() }

func (c *Layered) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := c.l1.Get(ctx, key); ok {
		return v, true
	}
	v, ok := c.l2.Get(ctx, key)
	if ok {
		c.l1.Set(ctx, key, v, 0)
	}
	return v, ok
}

func (c *Layered) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	c.l1.Set(ctx, key, val, ttl)
	c.l2.Set(ctx, key, val, ttl)
}

// 文档注释：规范化缓存键
// 背景：同一逻辑请求的不同写法（大小写、首尾空白、参数顺序）应命中同一条缓存。
// 约束：q 取 lower(trim)；其余参数按名排序后保留原值；空值参数丢弃。
func Key(path string, query url.Values) string {
	names := make([]string, 0, len(query))
	for k := range query {
		names = append(names, k)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString(path)
	sep := byte('?')
	for _, k := range names {
		v := strings.TrimSpace(query.Get(k))
		if k == "q" {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		b.WriteByte(sep)
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
		sep = '&'
	}
	return b.String()
}
