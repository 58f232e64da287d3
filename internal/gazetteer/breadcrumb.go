package gazetteer

import (
	"strings"

	"cambo-gazetteer/internal/domain"
)

// PathDelimiter 面包屑展示路径的分隔符
const PathDelimiter = " > "

// BreadcrumbItem 面包屑节点（仅展示所需字段）
type BreadcrumbItem struct {
	Code   string          `json:"code"`
	NameEn string          `json:"nameEn"`
	NameKm string          `json:"nameKm"`
	Type   domain.UnitType `json:"type"`
}

// 文档注释：由祖先链与当前单元构建面包屑
// 约束：ancestors 须为根在前；current 为空时返回空序列；不做类型前缀或名称去重。
func BuildBreadcrumb(ancestors []domain.Unit, current *domain.Unit) []BreadcrumbItem {
	if current == nil {
		return []BreadcrumbItem{}
	}
	out := make([]BreadcrumbItem, 0, len(ancestors)+1)
	for _, a := range ancestors {
		out = append(out, crumb(a))
	}
	return append(out, crumb(*current))
}

func crumb(u domain.Unit) BreadcrumbItem {
	return BreadcrumbItem{Code: u.Code, NameEn: u.NameEn, NameKm: u.NameKm, Type: u.Type}
}

// Path 英文名称路径，根到叶
func Path(items []BreadcrumbItem) string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.NameEn
	}
	return strings.Join(names, PathDelimiter)
}

// PathKm 高棉文名称路径，顺序与 Path 一致
func PathKm(items []BreadcrumbItem) string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.NameKm
	}
	return strings.Join(names, PathDelimiter)
}
