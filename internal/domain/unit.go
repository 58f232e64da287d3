// 包 domain：行政区划单元模型与存储端口，供查询核心与各存储实现共享
package domain

import (
	"strings"
	"time"
)

// UnitType 行政区划类型
type UnitType string

const (
	TypeProvince     UnitType = "province"
	TypeMunicipality UnitType = "municipality"
	TypeDistrict     UnitType = "district"
	TypeCommune      UnitType = "commune"
	TypeVillage      UnitType = "village"
)

// MaxDepth：树的固定层数（省/直辖市 → 区县 → 乡镇 → 村）
const MaxDepth = 4

// AllTypes 按层级排列的全部类型
var AllTypes = []UnitType{TypeProvince, TypeMunicipality, TypeDistrict, TypeCommune, TypeVillage}

// ParseUnitType：大小写不敏感解析；未知类型返回 false
func ParseUnitType(s string) (UnitType, bool) {
	t := UnitType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

func (t UnitType) Valid() bool {
	switch t {
	case TypeProvince, TypeMunicipality, TypeDistrict, TypeCommune, TypeVillage:
		return true
	}
	return false
}

// IsRoot：省与直辖市是互斥的根级兄弟类型
func (t UnitType) IsRoot() bool { return t == TypeProvince || t == TypeMunicipality }

// Level：1=省级 … 4=村级；未知类型返回 0
func (t UnitType) Level() int {
	switch t {
	case TypeProvince, TypeMunicipality:
		return 1
	case TypeDistrict:
		return 2
	case TypeCommune:
		return 3
	case TypeVillage:
		return 4
	}
	return 0
}

// ChildType：下一级类型；村级无下级
func (t UnitType) ChildType() (UnitType, bool) {
	switch t {
	case TypeProvince, TypeMunicipality:
		return TypeDistrict, true
	case TypeDistrict:
		return TypeCommune, true
	case TypeCommune:
		return TypeVillage, true
	}
	return "", false
}

// 文档注释：行政区划单元（唯一实体）
// 约束：Code 全局唯一；ParentCode 仅根级为空；层级正确性依赖 ParentCode 链接而非编码前缀。
type Unit struct {
	Code         string     `json:"code"`
	NameKm       string     `json:"nameKm"`
	NameEn       string     `json:"nameEn"`
	Type         UnitType   `json:"type"`
	TypeKm       *string    `json:"typeKm,omitempty"`
	TypeEn       *string    `json:"typeEn,omitempty"`
	ParentCode   *string    `json:"parentCode"`
	Reference    *string    `json:"reference,omitempty"`
	OfficialNote *string    `json:"officialNote,omitempty"`
	CheckerNote  *string    `json:"checkerNote,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

// IsRoot：无父级即根
func (u Unit) IsRoot() bool { return u.ParentCode == nil || *u.ParentCode == "" }

// Match：索引检索命中；Rank 越小越相关，仅索引路径提供
type Match struct {
	Unit
	Rank *float64
}

// TypeCount：统计行（类型 + 原始英文子类型标签 + 数量）
type TypeCount struct {
	Type   UnitType
	TypeEn string
	Count  int64
}

// ListFilter：按类型与父级过滤的分页列表条件
type ListFilter struct {
	Types      []UnitType
	ParentCode *string
	Offset     int
	Limit      int
}

// StrPtr：可选字段的便捷构造；空串视为缺省
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
