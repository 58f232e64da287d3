// 包 seed：解析规范化的行政区划 JSON 并按父级优先顺序导入存储
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"cambo-gazetteer/internal/domain"
	"cambo-gazetteer/internal/logger"
)

// Record 上游 ETL 产出的单条记录（snake_case 键）
type Record struct {
	Code         string  `json:"code"`
	NameKm       string  `json:"name_km"`
	NameEn       string  `json:"name_en"`
	Type         string  `json:"type"`
	TypeKm       *string `json:"type_km"`
	TypeEn       *string `json:"type_en"`
	ParentCode   *string `json:"parent_code"`
	Reference    *string `json:"reference"`
	OfficialNote *string `json:"official_note"`
	CheckerNote  *string `json:"checker_note"`
}

// optional：空白字符串视为缺失
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func (r Record) toUnit() (domain.Unit, error) {
	code := strings.TrimSpace(r.Code)
	if code == "" {
		return domain.Unit{}, fmt.Errorf("empty code")
	}
	t, ok := domain.ParseUnitType(r.Type)
	if !ok {
		return domain.Unit{}, fmt.Errorf("code %s: %w: %q", code, domain.ErrInvalidType, r.Type)
	}
	return domain.Unit{
		Code:         code,
		NameKm:       strings.TrimSpace(r.NameKm),
		NameEn:       strings.TrimSpace(r.NameEn),
		Type:         t,
		TypeKm:       optional(r.TypeKm),
		TypeEn:       optional(r.TypeEn),
		ParentCode:   optional(r.ParentCode),
		Reference:    optional(r.Reference),
		OfficialNote: optional(r.OfficialNote),
		CheckerNote:  optional(r.CheckerNote),
	}, nil
}

// 文档注释：解析 JSON 数组
// 约束：编码为空、类型未知或编码重复时整体失败；返回结果已按 Order 排序。
func Parse(r io.Reader) ([]domain.Unit, error) {
	var recs []Record
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return nil, fmt.Errorf("decode seed json: %w", err)
	}
	units := make([]domain.Unit, 0, len(recs))
	seen := make(map[string]struct{}, len(recs))
	for i, rec := range recs {
		u, err := rec.toUnit()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if _, dup := seen[u.Code]; dup {
			return nil, fmt.Errorf("record %d: duplicate code %s", i, u.Code)
		}
		seen[u.Code] = struct{}{}
		units = append(units, u)
	}
	Order(units)
	return units, nil
}

// Order：编码长度升序再按编码排序，保证父级先于子级写入
func Order(units []domain.Unit) {
	sort.SliceStable(units, func(i, j int) bool {
		if len(units[i].Code) != len(units[j].Code) {
			return len(units[i].Code) < len(units[j].Code)
		}
		return units[i].Code < units[j].Code
	})
}

// Orphans 返回父级编码不在数据集中的单元编码；仅用于告警，查询时按截断面包屑处理
func Orphans(units []domain.Unit) []string {
	codes := make(map[string]struct{}, len(units))
	for _, u := range units {
		codes[u.Code] = struct{}{}
	}
	var out []string
	for _, u := range units {
		if u.IsRoot() {
			continue
		}
		if _, ok := codes[*u.ParentCode]; !ok {
			out = append(out, u.Code)
		}
	}
	return out
}

// CountByType 按类型统计，供导入前打印概览
func CountByType(units []domain.Unit) map[domain.UnitType]int {
	out := map[domain.UnitType]int{}
	for _, u := range units {
		out[u.Type]++
	}
	return out
}

type Options struct {
	// RebuildIndex 为真时在写入完成后重建全文索引
	RebuildIndex bool
	Progress     func(n int)
}

// Load：写入单元并按需重建索引
func Load(ctx context.Context, l domain.Loader, units []domain.Unit, o Options) error {
	if err := l.Upsert(ctx, units, o.Progress); err != nil {
		return fmt.Errorf("upsert units: %w", err)
	}
	logger.L().Info("seed_upsert_done", "units", len(units))
	if !o.RebuildIndex {
		return nil
	}
	if err := l.RebuildSearchIndex(ctx); err != nil {
		return fmt.Errorf("rebuild search index: %w", err)
	}
	logger.L().Info("seed_index_rebuilt")
	return nil
}
