package postgres

import (
	"context"
	"fmt"
	"time"

	"cambo-gazetteer/internal/domain"
	"cambo-gazetteer/internal/logger"
	"cambo-gazetteer/internal/migrate"
)

const upsertBatch = 500

const upsertSQL = `INSERT INTO administrative_units(code, name_km, name_en, type, type_km, type_en, parent_code,
        reference, official_note, checker_note, created_at, updated_at)
    VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
    ON CONFLICT (code) DO UPDATE SET name_km=EXCLUDED.name_km, name_en=EXCLUDED.name_en, type=EXCLUDED.type,
        type_km=EXCLUDED.type_km, type_en=EXCLUDED.type_en, parent_code=EXCLUDED.parent_code,
        reference=EXCLUDED.reference, official_note=EXCLUDED.official_note, checker_note=EXCLUDED.checker_note,
        updated_at=EXCLUDED.updated_at`

// 文档注释：批量写入单元
// 背景：单事务内逐批执行预编译语句；父级外键为可延迟约束，提交时统一检查。
// 约束：任一行失败整体回滚；units 应已按父级在前排序。
func (s *Store) Upsert(ctx context.Context, units []domain.Unit, progress func(n int)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()
	now := time.Now().UTC()
	for start := 0; start < len(units); start += upsertBatch {
		end := min(start+upsertBatch, len(units))
		for _, u := range units[start:end] {
			if _, err := stmt.ExecContext(ctx, u.Code, u.NameKm, u.NameEn, string(u.Type), u.TypeKm, u.TypeEn,
				u.ParentCode, u.Reference, u.OfficialNote, u.CheckerNote, now); err != nil {
				return fmt.Errorf("upsert %s: %w", u.Code, err)
			}
		}
		if progress != nil {
			progress(end - start)
		}
		logger.L().Debug("seed_batch", "from", start, "to", end)
	}
	return tx.Commit()
}

// RebuildSearchIndex：search_terms 为生成列，确保列与索引存在即可
func (s *Store) RebuildSearchIndex(ctx context.Context) error {
	return migrate.EnsureSearchIndex(ctx, s.db)
}

var _ domain.Loader = (*Store)(nil)
