package gazetteer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cambo-gazetteer/internal/domain"
)

// UnitPage 分页单元列表
type UnitPage struct {
	ParentCode *string       `json:"parentCode,omitempty"`
	Data       []domain.Unit `json:"data"`
	Pagination Pagination    `json:"pagination"`
}

// ListByTypeAndParent：按类型与可选父级过滤并分页，按英文名排序
func (s *Service) ListByTypeAndParent(ctx context.Context, t domain.UnitType, parentCode *string, page, limit int) (UnitPage, error) {
	if !t.Valid() {
		return UnitPage{}, fmt.Errorf("%w: %q", domain.ErrInvalidType, string(t))
	}
	return s.list(ctx, []domain.UnitType{t}, parentCode, page, limit)
}

// Provinces 根级列表（省 + 直辖市）
func (s *Service) Provinces(ctx context.Context, page, limit int) (UnitPage, error) {
	return s.list(ctx, []domain.UnitType{domain.TypeProvince, domain.TypeMunicipality}, nil, page, limit)
}

func (s *Service) list(ctx context.Context, types []domain.UnitType, parentCode *string, page, limit int) (UnitPage, error) {
	page, limit = NormalizePage(page, limit)
	if parentCode != nil {
		if p := strings.TrimSpace(*parentCode); p != "" {
			parentCode = &p
		} else {
			parentCode = nil
		}
	}
	units, total, err := s.repo.List(ctx, domain.ListFilter{
		Types:      types,
		ParentCode: parentCode,
		Offset:     Offset(page, limit),
		Limit:      limit,
	})
	if err != nil {
		return UnitPage{}, fmt.Errorf("list %v: %w", types, err)
	}
	return UnitPage{ParentCode: parentCode, Data: nonNil(units), Pagination: NewPagination(page, limit, total)}, nil
}

// StatsByType 各类型计数
type StatsByType struct {
	Provinces      int64 `json:"provinces"`
	Municipalities int64 `json:"municipalities"`
	Districts      int64 `json:"districts"`
	Communes       int64 `json:"communes"`
	Villages       int64 `json:"villages"`
}

// Stats 数据集统计；BySubtype 以原始英文子类型标签分组（Srok、Khan、Sangkat…）
type Stats struct {
	Total     int64            `json:"total"`
	ByType    StatsByType      `json:"byType"`
	BySubtype map[string]int64 `json:"bySubtype"`
	Timestamp time.Time        `json:"timestamp"`
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.repo.CountByType(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	st := Stats{BySubtype: map[string]int64{}, Timestamp: s.now().UTC()}
	for _, r := range rows {
		st.Total += r.Count
		switch r.Type {
		case domain.TypeProvince:
			st.ByType.Provinces += r.Count
		case domain.TypeMunicipality:
			st.ByType.Municipalities += r.Count
		case domain.TypeDistrict:
			st.ByType.Districts += r.Count
		case domain.TypeCommune:
			st.ByType.Communes += r.Count
		case domain.TypeVillage:
			st.ByType.Villages += r.Count
		}
		if r.TypeEn != "" {
			st.BySubtype[r.TypeEn] += r.Count
		}
	}
	return st, nil
}
