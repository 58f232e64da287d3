package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gazetteer_requests_total",
		Help: "Total number of API requests by route and status",
	}, []string{"route", "status"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gazetteer_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"route"})
	SearchTierTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gazetteer_search_tier_total",
		Help: "Search and autocomplete queries answered per matching tier",
	}, []string{"op", "tier"})
	SearchFallbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gazetteer_search_fallback_total",
		Help: "Total fallbacks from the full-text index to substring matching",
	}, []string{"op"})
	EmptyResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gazetteer_empty_results_total",
		Help: "Total number of search responses with no match",
	}, []string{"op"})
	NotFoundTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gazetteer_code_not_found_total",
		Help: "Total code lookups that matched no unit",
	})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gazetteer_cache_hits_total",
		Help: "Total response cache hits",
	}, []string{"backend"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gazetteer_cache_misses_total",
		Help: "Total response cache misses",
	}, []string{"backend"})
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gazetteer_rate_limited_total",
		Help: "Total requests rejected by the rate limiter",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(SearchTierTotal)
	prometheus.MustRegister(SearchFallbackTotal)
	prometheus.MustRegister(EmptyResultsTotal)
	prometheus.MustRegister(NotFoundTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(RateLimitedTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
