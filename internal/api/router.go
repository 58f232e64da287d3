// 包 api：HTTP 路由与处理器，将查询核心暴露为只读 JSON 接口
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"cambo-gazetteer/internal/cache"
	"cambo-gazetteer/internal/domain"
	"cambo-gazetteer/internal/gazetteer"
	"cambo-gazetteer/internal/logger"
	"cambo-gazetteer/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	apiName        = "Cambodia Geo Gazetteer API"
	apiDescription = "Geographical Index Open API for Cambodia"
)

type Options struct {
	// APIBase 为接口挂载前缀，默认 /api；空串表示挂载在根路径
	APIBase string
	Version string
	// Cache 为空时不做服务端缓存，仅下发 Cache-Control
	Cache    cache.Cache
	CacheTTL time.Duration
	// Limiter 作用于 API 子路由（不含 /health 与 /metrics）
	Limiter func(http.Handler) http.Handler
	Logger  *slog.Logger
}

type Handler struct {
	svc      *gazetteer.Service
	cache    cache.Cache
	cacheTTL time.Duration
	base     string
	version  string
	log      *slog.Logger
	now      func() time.Time
}

// 文档注释：构建路由
// 背景：公共中间件（请求标识、真实 IP、异常恢复、访问日志、指标）挂在根路由；缓存与限流仅作用于业务接口。
// 约束：/metrics 与 /health 不经过限流与缓存。
func NewRouter(svc *gazetteer.Service, o Options) http.Handler {
	h := &Handler{
		svc:      svc,
		cache:    o.Cache,
		cacheTTL: o.CacheTTL,
		base:     o.APIBase,
		version:  o.Version,
		log:      o.Logger,
		now:      time.Now,
	}
	if h.log == nil {
		h.log = logger.L()
	}
	if h.version == "" {
		h.version = "1.0.0"
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(logger.AccessMiddleware(h.log))
	r.Use(instrument)

	r.Get("/health", h.handleHealth)
	r.Get("/", h.handleInfo)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	mount := func(api chi.Router) {
		if o.Limiter != nil {
			api.Use(o.Limiter)
		}
		if h.base != "" {
			api.Get("/", h.handleInfo)
			api.Get("/health", h.handleHealth)
		}
		api.Route("/v1", func(v1 chi.Router) {
			v1.With(h.cached(tierLookup)).Get("/code/{code}", h.handleCode)
			v1.With(h.cached(tierLookup)).Get("/provinces", h.handleProvinces)
			v1.With(h.cached(tierLookup)).Get("/districts", h.handleListing(domain.TypeDistrict, "province"))
			v1.With(h.cached(tierLookup)).Get("/communes", h.handleListing(domain.TypeCommune, "district"))
			v1.With(h.cached(tierLookup)).Get("/villages", h.handleListing(domain.TypeVillage, "commune"))
			v1.With(h.cached(tierSearch)).Get("/search", h.handleSearch)
			v1.With(h.cached(tierSearch)).Get("/autocomplete", h.handleAutocomplete)
			v1.With(h.cached(tierStats)).Get("/stats", h.handleStats)
		})
	}
	if h.base == "" {
		r.Group(mount)
	} else {
		r.Route(h.base, mount)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError：错误响应不允许被缓存
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, map[string]string{"error": msg})
}

// instrument：按 chi 路由模板记录请求数与耗时，避免编码进入标签
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.RequestDurationMs.WithLabelValues(route).Observe(float64(time.Since(start).Microseconds()) / 1000)
	})
}
