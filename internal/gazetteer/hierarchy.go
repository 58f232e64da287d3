package gazetteer

import (
	"context"
	"fmt"

	"cambo-gazetteer/internal/domain"
	"cambo-gazetteer/internal/metrics"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Hierarchy 单元的完整层级上下文；Current 为空表示未命中，其余字段无意义
type Hierarchy struct {
	Current       *domain.Unit
	Ancestors     []domain.Unit
	Children      []domain.Unit
	Siblings      []domain.Unit
	ChildrenCount map[domain.UnitType]int64
}

func (h Hierarchy) Found() bool { return h.Current != nil }

// LocationDetail 编码查询的对外结构
type LocationDetail struct {
	domain.Unit
	Breadcrumb    []BreadcrumbItem          `json:"breadcrumb"`
	Path          string                    `json:"path"`
	PathKm        string                    `json:"pathKm"`
	Ancestors     []domain.Unit             `json:"ancestors"`
	Children      []domain.Unit             `json:"children"`
	Siblings      []domain.Unit             `json:"siblings"`
	ChildrenCount map[domain.UnitType]int64 `json:"childrenCount"`
}

// Ancestors 根在前的祖先链，不含 code 本身；未知编码返回空序列
func (s *Service) Ancestors(ctx context.Context, code string) ([]domain.Unit, error) {
	anc, err := s.repo.Ancestors(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("ancestors of %s: %w", code, err)
	}
	return nonNil(anc), nil
}

// Children 仅直接下级，不做多级展开
func (s *Service) Children(ctx context.Context, code string) ([]domain.Unit, error) {
	ch, err := s.repo.Children(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("children of %s: %w", code, err)
	}
	return nonNil(ch), nil
}

// Siblings 同父级单元（不含自身）；根级单元没有兄弟
func (s *Service) Siblings(ctx context.Context, code string, limit int) ([]domain.Unit, error) {
	if limit <= 0 {
		limit = s.siblingsLimit
	}
	sib, err := s.repo.Siblings(ctx, code, limit)
	if err != nil {
		return nil, fmt.Errorf("siblings of %s: %w", code, err)
	}
	return nonNil(sib), nil
}

func (s *Service) ChildrenCount(ctx context.Context, code string) (map[domain.UnitType]int64, error) {
	cc, err := s.repo.ChildrenCount(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("children count of %s: %w", code, err)
	}
	if cc == nil {
		cc = map[domain.UnitType]int64{}
	}
	return cc, nil
}

// 文档注释：完整层级上下文
// 背景：当前单元、祖先、下级、兄弟与下级计数五个读取互不依赖，并发发出。
// 约束：任一读取失败即整体失败并取消其余读取；当前单元缺失时返回 Found()==false。
func (s *Service) FullHierarchy(ctx context.Context, code string) (Hierarchy, error) {
	var h Hierarchy
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.repo.GetByCode(gctx, code)
		if err != nil {
			return fmt.Errorf("get %s: %w", code, err)
		}
		h.Current = u
		return nil
	})
	g.Go(func() (err error) {
		h.Ancestors, err = s.Ancestors(gctx, code)
		return err
	})
	g.Go(func() (err error) {
		h.Children, err = s.Children(gctx, code)
		return err
	})
	g.Go(func() (err error) {
		h.Siblings, err = s.Siblings(gctx, code, s.siblingsLimit)
		return err
	})
	g.Go(func() (err error) {
		h.ChildrenCount, err = s.ChildrenCount(gctx, code)
		return err
	})
	if err := g.Wait(); err != nil {
		return Hierarchy{}, err
	}
	return h, nil
}

// LocationByCode：编码查询；未命中返回 (nil, nil)，由调用方映射为 not found
func (s *Service) LocationByCode(ctx context.Context, code string) (*LocationDetail, error) {
	ctx, span := tracer.Start(ctx, "gazetteer.LocationByCode", trace.WithAttributes(attribute.String("code", code)))
	defer span.End()
	h, err := s.FullHierarchy(ctx, code)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !h.Found() {
		metrics.NotFoundTotal.Inc()
		s.log.Debug("code_not_found", "code", code)
		return nil, nil
	}
	bc := BuildBreadcrumb(h.Ancestors, h.Current)
	return &LocationDetail{
		Unit:          *h.Current,
		Breadcrumb:    bc,
		Path:          Path(bc),
		PathKm:        PathKm(bc),
		Ancestors:     h.Ancestors,
		Children:      h.Children,
		Siblings:      h.Siblings,
		ChildrenCount: h.ChildrenCount,
	}, nil
}

func nonNil(u []domain.Unit) []domain.Unit {
	if u == nil {
		return []domain.Unit{}
	}
	return u
}
