package sqlite

import (
	"context"
	"fmt"

	"cambo-gazetteer/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const upsertBatch = 200

var upsertColumns = []string{"name_km", "name_en", "type", "type_km", "type_en", "parent_code",
	"reference", "official_note", "checker_note", "updated_at"}

// Upsert：单事务分批写入，编码冲突时更新除 created_at 外的全部列
func (s *Store) Upsert(ctx context.Context, units []domain.Unit, progress func(n int)) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(units); start += upsertBatch {
			end := min(start+upsertBatch, len(units))
			rows := make([]unitRow, 0, end-start)
			for _, u := range units[start:end] {
				rows = append(rows, fromDomain(u))
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "code"}},
				DoUpdates: clause.AssignmentColumns(upsertColumns),
			}).Create(&rows).Error
			if err != nil {
				return fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
			}
			if progress != nil {
				progress(end - start)
			}
			s.logger.Debug("seed_batch", "from", start, "to", end)
		}
		return nil
	})
}

// RebuildSearchIndex：确保 FTS5 虚表存在并按内容表重建
func (s *Store) RebuildSearchIndex(ctx context.Context) error {
	if err := s.ensureFTS(ctx); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Exec(ftsRebuild).Error
}

var _ domain.Loader = (*Store)(nil)
