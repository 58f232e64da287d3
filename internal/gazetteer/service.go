// 包 gazetteer：层级解析与检索核心（祖先链、面包屑、两级检索、自动补全、分页列表）
package gazetteer

import (
	"log/slog"
	"time"

	"cambo-gazetteer/internal/domain"
	"cambo-gazetteer/internal/logger"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("cambo-gazetteer/gazetteer")

const (
	DefaultSiblingsLimit     = 10
	defaultEnrichConcurrency = 8
)

// 文档注释：查询核心入口
// 背景：组合只读存储端口与两级匹配策略，对外提供编码解析、检索、自动补全、分页列表及统计。
// 约束：不持有可变共享状态；并发仅用于无数据依赖的子查询。
type Service struct {
	repo              domain.UnitRepository
	matcher           strategy
	siblingsLimit     int
	enrichConcurrency int
	log               *slog.Logger
	now               func() time.Time
}

type Option func(*Service)

func WithSiblingsLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.siblingsLimit = n
		}
	}
}

// WithEnrichConcurrency 限制检索结果补全祖先链时的并发数
func WithEnrichConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.enrichConcurrency = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(repo domain.UnitRepository, opts ...Option) *Service {
	s := &Service{
		repo:              repo,
		matcher:           strategy{primary: repo.IndexMatcher(), secondary: repo.FallbackMatcher()},
		siblingsLimit:     DefaultSiblingsLimit,
		enrichConcurrency: defaultEnrichConcurrency,
		log:               logger.L(),
		now:               time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.matcher.log = s.log
	return s
}
