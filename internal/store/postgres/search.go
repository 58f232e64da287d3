package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"cambo-gazetteer/internal/domain"

	"github.com/lib/pq"
)

// 索引相关的 SQLSTATE：未定义表/列/函数/对象、语法错误
var indexErrCodes = map[pq.ErrorCode]bool{
	"42P01": true,
	"42703": true,
	"42883": true,
	"42704": true,
	"42601": true,
}

// classify：索引不可用类错误包装为 ErrIndexUnavailable，其余原样返回
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pe *pq.Error
	if errors.As(err, &pe) && indexErrCodes[pe.Code] {
		return fmt.Errorf("%w: %s (%s)", domain.ErrIndexUnavailable, pe.Message, pe.Code)
	}
	return err
}

// termSeparators 与 search_terms 生成列的切分字符集一致（另加空白）
const termSeparators = `!"#$%&'()*+,./:;<=>?@[\]^_{|}~-`

// splitTerms：按空白与 ASCII 标点切分并转小写；非 ASCII 字符（含高棉文组合符号）一律保留在词内
func splitTerms(q string) []string {
	return strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(termSeparators, r)
	})
}

// 文档注释：构造 tsquery 字面量
// 背景：每个词加单引号作为词位原样匹配（不经文本解析器，保留高棉文组合字符），以 & 连接；prefix 时追加 :*。
// 约束：以 $n::tsquery 传入；切分后无可用词返回 false，由调用方按索引不可用处理。
func toTSQuery(q string, prefix bool) (string, bool) {
	fields := splitTerms(q)
	if len(fields) == 0 {
		return "", false
	}
	terms := make([]string, len(fields))
	for i, f := range fields {
		t := "'" + strings.NewReplacer(`\`, `\\`, `'`, `''`).Replace(f) + "'"
		if prefix {
			t += ":*"
		}
		terms[i] = t
	}
	return strings.Join(terms, " & "), true
}

// escapeLike：转义 LIKE 通配符，配合 ESCAPE '\'
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *Store) IndexMatcher() domain.Matcher    { return indexMatcher{s} }
func (s *Store) FallbackMatcher() domain.Matcher { return likeMatcher{s} }

// indexMatcher：search_terms 列上的词位匹配，rank 取 -ts_rank 使升序即更相关
type indexMatcher struct{ s *Store }

func (m indexMatcher) Match(ctx context.Context, query string, offset, limit int) ([]domain.Match, error) {
	tsq, ok := toTSQuery(query, false)
	if !ok {
		return nil, fmt.Errorf("%w: empty tsquery", domain.ErrIndexUnavailable)
	}
	rows, err := m.s.db.QueryContext(ctx, "SELECT "+columns("u")+`, -ts_rank(u.search_terms, t.q) AS rank
        FROM administrative_units u, (SELECT $1::tsquery AS q) t
        WHERE u.search_terms @@ t.q
        ORDER BY rank, u.name_en, u.code OFFSET $2 LIMIT $3`, tsq, offset, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := []domain.Match{}
	for rows.Next() {
		var rank float64
		u, err := scanUnit(rows, &rank)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Match{Unit: u, Rank: &rank})
	}
	return out, classify(rows.Err())
}

func (m indexMatcher) Count(ctx context.Context, query string) (int64, error) {
	tsq, ok := toTSQuery(query, false)
	if !ok {
		return 0, fmt.Errorf("%w: empty tsquery", domain.ErrIndexUnavailable)
	}
	var n int64
	err := m.s.db.QueryRowContext(ctx, `SELECT count(*) FROM administrative_units
        WHERE search_terms @@ $1::tsquery`, tsq).Scan(&n)
	return n, classify(err)
}

func (m indexMatcher) Prefix(ctx context.Context, query string, limit int) ([]domain.Unit, error) {
	tsq, ok := toTSQuery(query, true)
	if !ok {
		return nil, fmt.Errorf("%w: empty tsquery", domain.ErrIndexUnavailable)
	}
	units, err := m.s.queryUnits(ctx, "SELECT "+columns("u")+`
        FROM administrative_units u, (SELECT $1::tsquery AS q) t
        WHERE u.search_terms @@ t.q
        ORDER BY ts_rank(u.search_terms, t.q) DESC, length(u.name_en), u.name_en, u.code LIMIT $2`, tsq, limit)
	return units, classify(err)
}

// likeMatcher：ILIKE 子串匹配，按匹配精确度分档排序
type likeMatcher struct{ s *Store }

const likeWhere = `(name_en ILIKE $1 ESCAPE '\' OR name_km ILIKE $1 ESCAPE '\' OR code LIKE $2 ESCAPE '\')`

func (m likeMatcher) Match(ctx context.Context, query string, offset, limit int) ([]domain.Match, error) {
	e := escapeLike(query)
	units, err := m.s.queryUnits(ctx, "SELECT "+columns("")+" FROM administrative_units WHERE "+likeWhere+`
        ORDER BY CASE
            WHEN code = $3 THEN 0
            WHEN code LIKE $2 ESCAPE '\' THEN 1
            WHEN name_en ILIKE $2 ESCAPE '\' THEN 2
            WHEN name_km ILIKE $2 ESCAPE '\' THEN 3
            ELSE 4 END, name_en, code
        OFFSET $4 LIMIT $5`, "%"+e+"%", e+"%", query, offset, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Match, len(units))
	for i, u := range units {
		out[i] = domain.Match{Unit: u}
	}
	return out, nil
}

func (m likeMatcher) Count(ctx context.Context, query string) (int64, error) {
	e := escapeLike(query)
	var n int64
	err := m.s.db.QueryRowContext(ctx, "SELECT count(*) FROM administrative_units WHERE "+likeWhere,
		"%"+e+"%", e+"%").Scan(&n)
	return n, err
}

func (m likeMatcher) Prefix(ctx context.Context, query string, limit int) ([]domain.Unit, error) {
	e := escapeLike(query) + "%"
	return m.s.queryUnits(ctx, "SELECT "+columns("")+` FROM administrative_units
        WHERE name_en ILIKE $1 ESCAPE '\' OR name_km ILIKE $1 ESCAPE '\' OR code LIKE $1 ESCAPE '\'
        ORDER BY CASE
            WHEN name_en ILIKE $1 ESCAPE '\' THEN 1
            WHEN name_km ILIKE $1 ESCAPE '\' THEN 2
            ELSE 3 END, length(name_en), name_en, code
        LIMIT $2`, e, limit)
}
