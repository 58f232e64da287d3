// 包 middleware：入口限流
package middleware

import (
	"net/http"
	"time"

	"cambo-gazetteer/internal/logger"
	"cambo-gazetteer/internal/metrics"

	"golang.org/x/time/rate"
)

// 文档注释：入口令牌桶
// 背景：在流量峰值时对 API 入口限速，避免缓存未命中时数据库被过载。
// 约束：令牌按 qps 连续补充，桶容量等于 qps，任意一秒窗口内放行不超过 2*qps 的突发；超额直接返回 429，不排队。
type Limiter struct {
	l   *rate.Limiter
	now func() time.Time
}

func NewLimiter(qps int) *Limiter {
	return &Limiter{l: rate.NewLimiter(rate.Limit(qps), qps), now: time.Now}
}

func (lm *Limiter) Allow() bool { return lm.l.AllowN(lm.now(), 1) }

// RateLimit：qps<=0 时不限流，原样返回 next
func RateLimit(qps int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if qps <= 0 {
			return next
		}
		lm := NewLimiter(qps)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lm.Allow() {
				metrics.RateLimitedTotal.Inc()
				logger.L().Debug("rate_limited", "path", r.URL.Path, "ip", r.RemoteAddr)
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
