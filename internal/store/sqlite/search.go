package sqlite

import (
	"context"
	"fmt"
	"strings"

	"cambo-gazetteer/internal/domain"
)

const ftsTable = "administrative_units_fts"

// ftsTokenizer：高棉文元音符号与 coeng 属于 Mc/Mn 类，需计入词内字符，否则高棉文名称会被切成碎片
const ftsTokenizer = `unicode61 categories 'L* N* Co M*'`

var ftsDDL = []string{
	`CREATE VIRTUAL TABLE IF NOT EXISTS administrative_units_fts USING fts5(
        code, name_en, name_km, content='administrative_units', tokenize="` + ftsTokenizer + `")`,
	`CREATE TRIGGER IF NOT EXISTS administrative_units_fts_ai AFTER INSERT ON administrative_units BEGIN
        INSERT INTO administrative_units_fts(rowid, code, name_en, name_km) VALUES (new.rowid, new.code, new.name_en, new.name_km);
    END`,
	`CREATE TRIGGER IF NOT EXISTS administrative_units_fts_ad AFTER DELETE ON administrative_units BEGIN
        INSERT INTO administrative_units_fts(administrative_units_fts, rowid, code, name_en, name_km) VALUES ('delete', old.rowid, old.code, old.name_en, old.name_km);
    END`,
	`CREATE TRIGGER IF NOT EXISTS administrative_units_fts_au AFTER UPDATE ON administrative_units BEGIN
        INSERT INTO administrative_units_fts(administrative_units_fts, rowid, code, name_en, name_km) VALUES ('delete', old.rowid, old.code, old.name_en, old.name_km);
        INSERT INTO administrative_units_fts(rowid, code, name_en, name_km) VALUES (new.rowid, new.code, new.name_en, new.name_km);
    END`,
}

var ftsDrop = []string{
	`DROP TRIGGER IF EXISTS administrative_units_fts_ai`,
	`DROP TRIGGER IF EXISTS administrative_units_fts_ad`,
	`DROP TRIGGER IF EXISTS administrative_units_fts_au`,
	`DROP TABLE IF EXISTS administrative_units_fts`,
}

// 文档注释：创建 FTS5 虚表与同步触发器
// 约束：已存在但分词器不同的旧表先删除重建，并从内容表重新灌入索引。
func (s *Store) ensureFTS(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	var existing string
	if err := db.Raw(`SELECT coalesce(max(sql), '') FROM sqlite_master WHERE type = 'table' AND name = ?`, ftsTable).Scan(&existing).Error; err != nil {
		return err
	}
	stale := existing != "" && !strings.Contains(existing, ftsTokenizer)
	if stale {
		s.logger.Info("search_index_upgrade", "table", ftsTable)
		for _, stmt := range ftsDrop {
			if err := db.Exec(stmt).Error; err != nil {
				return err
			}
		}
	}
	for i, stmt := range ftsDDL {
		s.logger.Debug("schema_exec", "phase", "fts", "idx", i)
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	if stale {
		return db.Exec(ftsRebuild).Error
	}
	return nil
}

const ftsRebuild = `INSERT INTO administrative_units_fts(administrative_units_fts) VALUES ('rebuild')`

// 引擎报告的索引相关错误片段（小写比较）
var indexErrPatterns = []string{
	"no such table: " + ftsTable,
	"no such module: fts5",
	"fts5:",
	"malformed match",
	"unable to use function match",
	"unterminated string",
}

// classify：索引缺失或匹配表达式被拒绝时包装为 ErrIndexUnavailable
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, p := range indexErrPatterns {
		if strings.Contains(msg, p) {
			return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
		}
	}
	return err
}

// 文档注释：构造 FTS5 MATCH 表达式
// 背景：每个词整体加双引号作为字符串字面量，内部双引号成对转义，避免用户输入被解析为 FTS5 运算符或列过滤。
// 约束：prefix 时每个词后追加 *；多词之间为隐式 AND。
func ftsQuery(q string, prefix bool) string {
	fields := strings.Fields(q)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		t := `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
		if prefix {
			t += "*"
		}
		terms = append(terms, t)
	}
	return strings.Join(terms, " ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *Store) IndexMatcher() domain.Matcher    { return ftsMatcher{s} }
func (s *Store) FallbackMatcher() domain.Matcher { return likeMatcher{s} }

type ftsMatcher struct{ s *Store }

type rankedRow struct {
	Row  unitRow `gorm:"embedded"`
	Rank float64
}

func (m ftsMatcher) Match(ctx context.Context, query string, offset, limit int) ([]domain.Match, error) {
	var rows []rankedRow
	err := m.s.db.WithContext(ctx).Raw(`SELECT u.*, administrative_units_fts.rank AS rank
        FROM administrative_units_fts JOIN administrative_units u ON u.rowid = administrative_units_fts.rowid
        WHERE administrative_units_fts MATCH ?
        ORDER BY administrative_units_fts.rank, u.name_en, u.code LIMIT ? OFFSET ?`,
		ftsQuery(query, false), limit, offset).Scan(&rows).Error
	if err != nil {
		return nil, classify(err)
	}
	out := make([]domain.Match, len(rows))
	for i, r := range rows {
		rank := r.Rank
		out[i] = domain.Match{Unit: r.Row.toDomain(), Rank: &rank}
	}
	return out, nil
}

func (m ftsMatcher) Count(ctx context.Context, query string) (int64, error) {
	var n int64
	err := m.s.db.WithContext(ctx).Raw(`SELECT count(*) FROM administrative_units_fts
        WHERE administrative_units_fts MATCH ?`, ftsQuery(query, false)).Scan(&n).Error
	return n, classify(err)
}

func (m ftsMatcher) Prefix(ctx context.Context, query string, limit int) ([]domain.Unit, error) {
	var rows []unitRow
	err := m.s.db.WithContext(ctx).Raw(`SELECT u.*
        FROM administrative_units_fts JOIN administrative_units u ON u.rowid = administrative_units_fts.rowid
        WHERE administrative_units_fts MATCH ?
        ORDER BY administrative_units_fts.rank, length(u.name_en), u.name_en, u.code LIMIT ?`,
		ftsQuery(query, true), limit).Scan(&rows).Error
	if err != nil {
		return nil, classify(err)
	}
	return toUnits(rows), nil
}

// likeMatcher：LIKE 子串匹配（ASCII 大小写不敏感），按匹配精确度分档排序
type likeMatcher struct{ s *Store }

const likeWhere = `(name_en LIKE ? ESCAPE '\' OR name_km LIKE ? ESCAPE '\' OR code LIKE ? ESCAPE '\')`

func (m likeMatcher) Match(ctx context.Context, query string, offset, limit int) ([]domain.Match, error) {
	e := escapeLike(query)
	contains, prefix := "%"+e+"%", e+"%"
	var rows []unitRow
	err := m.s.db.WithContext(ctx).Raw(`SELECT * FROM administrative_units WHERE `+likeWhere+`
        ORDER BY CASE
            WHEN code = ? THEN 0
            WHEN code LIKE ? ESCAPE '\' THEN 1
            WHEN name_en LIKE ? ESCAPE '\' THEN 2
            WHEN name_km LIKE ? ESCAPE '\' THEN 3
            ELSE 4 END, name_en, code
        LIMIT ? OFFSET ?`,
		contains, contains, prefix, query, prefix, prefix, prefix, limit, offset).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Match, len(rows))
	for i, r := range rows {
		out[i] = domain.Match{Unit: r.toDomain()}
	}
	return out, nil
}

func (m likeMatcher) Count(ctx context.Context, query string) (int64, error) {
	e := escapeLike(query)
	var n int64
	err := m.s.db.WithContext(ctx).Raw(`SELECT count(*) FROM administrative_units WHERE `+likeWhere,
		"%"+e+"%", "%"+e+"%", e+"%").Scan(&n).Error
	return n, err
}

func (m likeMatcher) Prefix(ctx context.Context, query string, limit int) ([]domain.Unit, error) {
	p := escapeLike(query) + "%"
	var rows []unitRow
	err := m.s.db.WithContext(ctx).Raw(`SELECT * FROM administrative_units WHERE `+likeWhere+`
        ORDER BY CASE
            WHEN name_en LIKE ? ESCAPE '\' THEN 1
            WHEN name_km LIKE ? ESCAPE '\' THEN 2
            ELSE 3 END, length(name_en), name_en, code
        LIMIT ?`, p, p, p, p, p, limit).Scan(&rows).Error
	return toUnits(rows), err
}
