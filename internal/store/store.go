// 包 store：按配置选择并打开单元存储后端（PostgreSQL 或 SQLite）
package store

import (
	"context"
	"fmt"

	"cambo-gazetteer/internal/config"
	"cambo-gazetteer/internal/domain"
	"cambo-gazetteer/internal/logger"
	"cambo-gazetteer/internal/migrate"
	"cambo-gazetteer/internal/store/postgres"
	"cambo-gazetteer/internal/store/sqlite"
	"cambo-gazetteer/internal/utils"
)

// Backend：查询端口 + 导入端口 + 连接释放
type Backend interface {
	domain.UnitRepository
	domain.Loader
	Close() error
}

// 文档注释：打开存储
// 背景：PostgreSQL 由 migrate 维护表结构，SQLite 由 gorm AutoMigrate 维护。
// 约束：全文索引创建失败不阻断启动，检索自动退回子串匹配并记录告警。
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		db, err := utils.OpenPostgres(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := migrate.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		if cfg.SearchIndex {
			if err := migrate.EnsureSearchIndex(ctx, db); err != nil {
				logger.L().Warn("search_index_unavailable", "driver", cfg.DBDriver, "err", err)
			}
		}
		return postgres.Attach(db), nil
	case config.DriverSQLite:
		s, err := sqlite.Open(sqlite.Options{
			Path:        cfg.SQLitePath,
			SearchIndex: cfg.SearchIndex,
			Logger:      logger.L(),
		})
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
}
