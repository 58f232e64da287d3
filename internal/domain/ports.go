package domain

import (
	"context"
	"errors"
)

var (
	// ErrIndexUnavailable：全文索引未建立或匹配表达式被引擎拒绝，调用方应退回子串匹配
	ErrIndexUnavailable = errors.New("search index unavailable")
	// ErrInvalidType：未知的行政区划类型
	ErrInvalidType = errors.New("invalid unit type")
)

// 文档注释：单元存储端口（只读）
// 背景：查询核心只依赖这组窄接口，PostgreSQL 与 SQLite 两种实现可互换。
// 约束：未命中不是错误；GetByCode 未命中返回 (nil, nil)，列表类返回空切片。
type UnitRepository interface {
	GetByCode(ctx context.Context, code string) (*Unit, error)
	// Ancestors 由根到直接父级，不含 code 本身
	Ancestors(ctx context.Context, code string) ([]Unit, error)
	// Children 仅直接下级，按英文名、编码排序
	Children(ctx context.Context, code string) ([]Unit, error)
	Siblings(ctx context.Context, code string, limit int) ([]Unit, error)
	ChildrenCount(ctx context.Context, code string) (map[UnitType]int64, error)
	List(ctx context.Context, f ListFilter) ([]Unit, int64, error)
	CountByType(ctx context.Context) ([]TypeCount, error)

	// IndexMatcher 全文索引路径；FallbackMatcher 子串/前缀路径
	IndexMatcher() Matcher
	FallbackMatcher() Matcher
}

// 文档注释：文本匹配器
// 约束：Match 与 Count 必须使用同一谓词，保证分页总数精确；
// 索引相关失败需包装为 ErrIndexUnavailable，其余错误原样返回。
type Matcher interface {
	Match(ctx context.Context, query string, offset, limit int) ([]Match, error)
	Count(ctx context.Context, query string) (int64, error)
	Prefix(ctx context.Context, query string, limit int) ([]Unit, error)
}

// Loader：一次性批量导入（仅供种子工具使用，查询路径不调用）
// Upsert 在单个事务内按批写入，每批写入后回调 progress(本批条数)；progress 可为空
type Loader interface {
	Upsert(ctx context.Context, units []Unit, progress func(n int)) error
	RebuildSearchIndex(ctx context.Context) error
}
