// 包 utils：数据库、Redis 与 TLS 证书的打开/准备工具，统一从配置读取参数
package utils

import (
	"context"
	"database/sql"
	"time"

	"cambo-gazetteer/internal/config"
	"cambo-gazetteer/internal/logger"

	_ "github.com/lib/pq"
)

// OpenPostgres：按配置打开连接池并探活
// 约束：连接池上限取 PG_MAX_OPEN_CONNS / PG_MAX_IDLE_CONNS；探活失败关闭连接并返回错误
func OpenPostgres(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.PostgresDSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.PGMaxOpenConns)
	db.SetMaxIdleConns(cfg.PGMaxIdleConns)
	db.SetConnMaxIdleTime(5 * time.Minute)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.L().Info("db_open_ok", "driver", config.DriverPostgres, "host", cfg.PGHost, "db", cfg.PGDB)
	return db, nil
}
