// 包 postgres：PostgreSQL 单元存储（递归 CTE 祖先链、tsvector 全文检索与 ILIKE 子串回退）
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"cambo-gazetteer/internal/domain"
	"cambo-gazetteer/internal/logger"

	"github.com/lib/pq"
)

// Store：只读查询与一次性导入共用的连接池包装
type Store struct {
	db *sql.DB
}

func Attach(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func columns(alias string) string {
	cols := []string{"code", "name_km", "name_en", "type", "type_km", "type_en", "parent_code",
		"reference", "official_note", "checker_note", "created_at", "updated_at"}
	if alias == "" {
		return strings.Join(cols, ", ")
	}
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanUnit：可选列经 Null* 中转，空值映射为 nil 指针；extra 追加在固定列之后
func scanUnit(r rowScanner, extra ...any) (domain.Unit, error) {
	var u domain.Unit
	var typ string
	var typeKm, typeEn, parent, ref, official, checker sql.NullString
	var created, updated sql.NullTime
	dest := append([]any{&u.Code, &u.NameKm, &u.NameEn, &typ, &typeKm, &typeEn, &parent,
		&ref, &official, &checker, &created, &updated}, extra...)
	if err := r.Scan(dest...); err != nil {
		return domain.Unit{}, err
	}
	u.Type = domain.UnitType(typ)
	u.TypeKm = nullStr(typeKm)
	u.TypeEn = nullStr(typeEn)
	u.ParentCode = nullStr(parent)
	u.Reference = nullStr(ref)
	u.OfficialNote = nullStr(official)
	u.CheckerNote = nullStr(checker)
	if created.Valid {
		u.CreatedAt = &created.Time
	}
	if updated.Valid {
		u.UpdatedAt = &updated.Time
	}
	return u, nil
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func (s *Store) queryUnits(ctx context.Context, query string, args ...any) ([]domain.Unit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Unit{}
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetByCode：未命中返回 (nil, nil)
func (s *Store) GetByCode(ctx context.Context, code string) (*domain.Unit, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+columns("")+" FROM administrative_units WHERE code=$1", code)
	u, err := scanUnit(row)
	if err == sql.ErrNoRows {
		logger.L().Debug("db_unit_miss", "code", code)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// 文档注释：祖先链（根在前）
// 背景：递归 CTE 自直接父级向上游走，depth 自 0 递增，按 depth 倒序即得根在前的顺序。
// 约束：递归层数受 MaxDepth 约束，即使数据中存在环也能终止；父级缺失时链条提前截断。
func (s *Store) Ancestors(ctx context.Context, code string) ([]domain.Unit, error) {
	q := `WITH RECURSIVE chain AS (
            SELECT ` + columns("p") + `, 0 AS depth
            FROM administrative_units c JOIN administrative_units p ON p.code = c.parent_code
            WHERE c.code = $1
            UNION ALL
            SELECT ` + columns("p") + `, chain.depth + 1
            FROM chain JOIN administrative_units p ON p.code = chain.parent_code
            WHERE chain.depth < $2
        )
        SELECT ` + columns("") + ` FROM chain ORDER BY depth DESC`
	return s.queryUnits(ctx, q, code, domain.MaxDepth-1)
}

func (s *Store) Children(ctx context.Context, code string) ([]domain.Unit, error) {
	return s.queryUnits(ctx, "SELECT "+columns("")+` FROM administrative_units
        WHERE parent_code=$1 ORDER BY name_en, code`, code)
}

// Siblings：以自身 parent_code 关联；根级单元 parent_code 为空，关联不到任何行
func (s *Store) Siblings(ctx context.Context, code string, limit int) ([]domain.Unit, error) {
	return s.queryUnits(ctx, "SELECT "+columns("s")+` FROM administrative_units s
        JOIN administrative_units self ON self.parent_code = s.parent_code
        WHERE self.code=$1 AND s.code<>$1
        ORDER BY s.name_en, s.code LIMIT $2`, code, limit)
}

func (s *Store) ChildrenCount(ctx context.Context, code string) (map[domain.UnitType]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, count(*) FROM administrative_units
        WHERE parent_code=$1 GROUP BY type`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[domain.UnitType]int64{}
	for rows.Next() {
		var t string
		var n int64
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		out[domain.UnitType(t)] = n
	}
	return out, rows.Err()
}

// List：按类型集合与可选父级过滤；数据与总数使用同一谓词
func (s *Store) List(ctx context.Context, f domain.ListFilter) ([]domain.Unit, int64, error) {
	types := make([]string, len(f.Types))
	for i, t := range f.Types {
		types[i] = string(t)
	}
	where := "type = ANY($1)"
	args := []any{pq.Array(types)}
	if f.ParentCode != nil {
		where += " AND parent_code = $2"
		args = append(args, *f.ParentCode)
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM administrative_units WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	q := fmt.Sprintf("SELECT %s FROM administrative_units WHERE %s ORDER BY name_en, code OFFSET $%d LIMIT $%d",
		columns(""), where, n+1, n+2)
	units, err := s.queryUnits(ctx, q, append(args, f.Offset, f.Limit)...)
	if err != nil {
		return nil, 0, err
	}
	return units, total, nil
}

func (s *Store) CountByType(ctx context.Context) ([]domain.TypeCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, coalesce(type_en, ''), count(*)
        FROM administrative_units GROUP BY type, type_en ORDER BY type, type_en`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.TypeCount
	for rows.Next() {
		var tc domain.TypeCount
		var t string
		if err := rows.Scan(&t, &tc.TypeEn, &tc.Count); err != nil {
			return nil, err
		}
		tc.Type = domain.UnitType(t)
		out = append(out, tc)
	}
	return out, rows.Err()
}

var _ domain.UnitRepository = (*Store)(nil)
