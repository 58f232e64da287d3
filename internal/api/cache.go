package api

import (
	"bytes"
	"net/http"
	"time"

	"cambo-gazetteer/internal/cache"
	"cambo-gazetteer/internal/metrics"
)

// cacheTier：客户端缓存策略与服务端缓存时长上限
type cacheTier struct {
	control string
	maxAge  time.Duration
}

var (
	tierSearch = cacheTier{"public, max-age=3600, stale-while-revalidate=900", time.Hour}
	tierLookup = cacheTier{"public, max-age=43200, stale-while-revalidate=10800", 12 * time.Hour}
	tierStats  = cacheTier{"public, max-age=86400, stale-while-revalidate=43200", 24 * time.Hour}
)

// teeWriter：透传响应并保留副本，用于写入服务端缓存
type teeWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *teeWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *teeWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// 文档注释：响应缓存中间件
// 背景：数据集只读，相同规范化请求的响应可直接复用；键由路径与排序后的查询参数组成，q 统一小写去空白。
// 约束：仅缓存 200 响应；缓存读写失败按未命中处理，不影响请求。
func (h *Handler) cached(t cacheTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", t.control)
			if h.cache == nil {
				next.ServeHTTP(w, r)
				return
			}
			key := cache.Key(r.URL.Path, r.URL.Query())
			if b, ok := h.cache.Get(r.Context(), key); ok {
				metrics.CacheHitsTotal.WithLabelValues(h.cache.Name()).Inc()
				h.log.Debug("cache_hit", "key", key)
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(b)
				return
			}
			metrics.CacheMissesTotal.WithLabelValues(h.cache.Name()).Inc()
			w.Header().Set("X-Cache", "MISS")
			tw := &teeWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(tw, r)
			if tw.status == http.StatusOK && tw.buf.Len() > 0 {
				ttl := t.maxAge
				if h.cacheTTL > 0 && h.cacheTTL < ttl {
					ttl = h.cacheTTL
				}
				h.cache.Set(r.Context(), key, tw.buf.Bytes(), ttl)
			}
		})
	}
}
