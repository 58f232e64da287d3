package gazetteer

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100

	DefaultSuggestLimit = 10
	MaxSuggestLimit     = 20
)

// Pagination 分页元数据；Total 与 TotalPages 为精确值
type Pagination struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// NormalizePage：page 小于 1 归 1；limit 小于 1 取默认，超过上限截断
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	} else if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func normalizeSuggestLimit(limit int) int {
	if limit < 1 {
		return DefaultSuggestLimit
	}
	if limit > MaxSuggestLimit {
		return MaxSuggestLimit
	}
	return limit
}

// Offset 由页码换算偏移量（页码从 1 开始）
func Offset(page, limit int) int { return (page - 1) * limit }

// NewPagination 根据总数构建分页元数据
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}
