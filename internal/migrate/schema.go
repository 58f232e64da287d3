// 包 migrate：PostgreSQL 结构初始化（单元表、父级索引、可选的全文检索列）
package migrate

import (
	"context"
	"database/sql"

	"cambo-gazetteer/internal/logger"
)

// 背景：首次运行自动创建单元表与索引，保障导入与查询
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS administrative_units (
            code TEXT PRIMARY KEY,
            name_km TEXT NOT NULL,
            name_en TEXT NOT NULL,
            type TEXT NOT NULL CHECK (type IN ('province','municipality','district','commune','village')),
            type_km TEXT,
            type_en TEXT,
            parent_code TEXT REFERENCES administrative_units(code) DEFERRABLE INITIALLY DEFERRED,
            reference TEXT,
            official_note TEXT,
            checker_note TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_units_parent ON administrative_units(parent_code)`,
		`CREATE INDEX IF NOT EXISTS idx_units_type ON administrative_units(type)`,
		`CREATE INDEX IF NOT EXISTS idx_units_type_parent ON administrative_units(type, parent_code)`,
		`CREATE INDEX IF NOT EXISTS idx_units_name_en ON administrative_units(name_en)`,
	}
	return exec(ctx, db, "schema", stmts)
}

// 文档注释：全文检索列
// 背景：默认文本解析器只把字母数字视为词内字符，高棉文的元音符号与 coeng 会被切开；
// 因此不经解析器，直接按空白与 ASCII 标点切分小写文本生成词位（array_to_tsvector），查询端按相同规则切分。
// 约束：生成列随行更新，无需触发器；重复执行安全；旧版 search_vector 列在此删除。
func EnsureSearchIndex(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`ALTER TABLE administrative_units DROP COLUMN IF EXISTS search_vector`,
		`ALTER TABLE administrative_units ADD COLUMN IF NOT EXISTS search_terms tsvector
            GENERATED ALWAYS AS (array_to_tsvector(array_remove(regexp_split_to_array(
                lower(coalesce(code,'') || ' ' || coalesce(name_en,'') || ' ' || coalesce(name_km,'')),
                '[[:space:]!"#$%&''()*+,./:;<=>?@\[\\\]^_{|}~-]+'), ''))) STORED`,
		`CREATE INDEX IF NOT EXISTS idx_units_search_terms ON administrative_units USING GIN (search_terms)`,
	}
	return exec(ctx, db, "search_index", stmts)
}

func exec(ctx context.Context, db *sql.DB, phase string, stmts []string) error {
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "phase", phase, "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done", "phase", phase)
	return nil
}
