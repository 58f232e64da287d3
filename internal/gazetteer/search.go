package gazetteer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cambo-gazetteer/internal/domain"
	"cambo-gazetteer/internal/metrics"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	tierIndex    = "index"
	tierFallback = "fallback"
)

// SearchResult 检索命中并附带面包屑与展示路径；Rank 仅索引路径提供
type SearchResult struct {
	domain.Unit
	Breadcrumb []BreadcrumbItem `json:"breadcrumb"`
	Path       string           `json:"path"`
	PathKm     string           `json:"pathKm"`
	Rank       *float64         `json:"rank,omitempty"`
}

type SearchResponse struct {
	Query      string         `json:"query"`
	Data       []SearchResult `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

type SuggestionList struct {
	Query       string        `json:"query"`
	Suggestions []domain.Unit `json:"suggestions"`
}

// 文档注释：两级匹配策略
// 背景：先走全文索引，仅当错误为 ErrIndexUnavailable 时一次性退回子串匹配；其他错误（含取消）原样上抛。
// 约束：同一请求的数据与总数必须来自同一级，保证分页总数与数据一致。
type strategy struct {
	primary   domain.Matcher
	secondary domain.Matcher
	log       *slog.Logger
}

func (st strategy) page(ctx context.Context, op, q string, offset, limit int) ([]domain.Match, int64, string, error) {
	if st.primary != nil {
		hits, total, err := matchPage(ctx, st.primary, q, offset, limit)
		if err == nil {
			return hits, total, tierIndex, nil
		}
		if !errors.Is(err, domain.ErrIndexUnavailable) {
			return nil, 0, "", err
		}
		st.degraded(op, q, err)
	}
	hits, total, err := matchPage(ctx, st.secondary, q, offset, limit)
	if err != nil {
		return nil, 0, "", err
	}
	return hits, total, tierFallback, nil
}

func (st strategy) prefix(ctx context.Context, op, q string, limit int) ([]domain.Unit, string, error) {
	if st.primary != nil {
		units, err := st.primary.Prefix(ctx, q, limit)
		if err == nil {
			return units, tierIndex, nil
		}
		if !errors.Is(err, domain.ErrIndexUnavailable) {
			return nil, "", err
		}
		st.degraded(op, q, err)
	}
	units, err := st.secondary.Prefix(ctx, q, limit)
	if err != nil {
		return nil, "", err
	}
	return units, tierFallback, nil
}

func (st strategy) degraded(op, q string, err error) {
	metrics.SearchFallbackTotal.WithLabelValues(op).Inc()
	if st.log != nil {
		st.log.Debug("search_fallback", "op", op, "q", q, "err", err)
	}
}

// matchPage：数据与计数互不依赖，并发执行
func matchPage(ctx context.Context, m domain.Matcher, q string, offset, limit int) ([]domain.Match, int64, error) {
	var hits []domain.Match
	var total int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		hits, err = m.Match(gctx, q, offset, limit)
		return err
	})
	g.Go(func() (err error) {
		total, err = m.Count(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return hits, total, nil
}

// 文档注释：分页检索并补全面包屑
// 约束：空查询返回空结果而非错误（必填校验在 HTTP 层完成）；limit 截断到 MaxLimit，page 小于 1 归 1。
func (s *Service) Search(ctx context.Context, query string, page, limit int) (SearchResponse, error) {
	page, limit = NormalizePage(page, limit)
	q := strings.TrimSpace(query)
	out := SearchResponse{Query: query, Data: []SearchResult{}, Pagination: NewPagination(page, limit, 0)}
	if q == "" {
		return out, nil
	}
	ctx, span := tracer.Start(ctx, "gazetteer.Search", trace.WithAttributes(
		attribute.String("q", q), attribute.Int("page", page), attribute.Int("limit", limit)))
	defer span.End()

	hits, total, tier, err := s.matcher.page(ctx, "search", q, Offset(page, limit), limit)
	if err != nil {
		span.RecordError(err)
		return SearchResponse{}, fmt.Errorf("search %q: %w", q, err)
	}
	span.SetAttributes(attribute.String("tier", tier), attribute.Int64("total", total))
	metrics.SearchTierTotal.WithLabelValues("search", tier).Inc()
	if total == 0 {
		metrics.EmptyResultsTotal.WithLabelValues("search").Inc()
	}

	data, err := s.enrich(ctx, hits)
	if err != nil {
		span.RecordError(err)
		return SearchResponse{}, err
	}
	out.Data = data
	out.Pagination = NewPagination(page, limit, total)
	s.log.Debug("search_done", "q", q, "tier", tier, "total", total, "page", page, "limit", limit)
	return out, nil
}

// enrich：每个命中取一次祖先链；树深固定，成本与结果数线性相关
func (s *Service) enrich(ctx context.Context, hits []domain.Match) ([]SearchResult, error) {
	out := make([]SearchResult, len(hits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.enrichConcurrency)
	for i, h := range hits {
		g.Go(func() error {
			anc, err := s.Ancestors(gctx, h.Code)
			if err != nil {
				return err
			}
			bc := BuildBreadcrumb(anc, &h.Unit)
			out[i] = SearchResult{Unit: h.Unit, Breadcrumb: bc, Path: Path(bc), PathKm: PathKm(bc), Rank: h.Rank}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// 文档注释：自动补全（仅前缀，不分页，不补全面包屑）
// 约束：limit 默认 10，上限 MaxSuggestLimit。
func (s *Service) Autocomplete(ctx context.Context, query string, limit int) (SuggestionList, error) {
	limit = normalizeSuggestLimit(limit)
	q := strings.TrimSpace(query)
	out := SuggestionList{Query: query, Suggestions: []domain.Unit{}}
	if q == "" {
		return out, nil
	}
	ctx, span := tracer.Start(ctx, "gazetteer.Autocomplete", trace.WithAttributes(attribute.String("q", q)))
	defer span.End()

	units, tier, err := s.matcher.prefix(ctx, "autocomplete", q, limit)
	if err != nil {
		span.RecordError(err)
		return SuggestionList{}, fmt.Errorf("autocomplete %q: %w", q, err)
	}
	metrics.SearchTierTotal.WithLabelValues("autocomplete", tier).Inc()
	if len(units) == 0 {
		metrics.EmptyResultsTotal.WithLabelValues("autocomplete").Inc()
	}
	out.Suggestions = nonNil(units)
	return out, nil
}
