// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cambo-gazetteer/internal/api"
	"cambo-gazetteer/internal/cache"
	"cambo-gazetteer/internal/config"
	"cambo-gazetteer/internal/gazetteer"
	"cambo-gazetteer/internal/logger"
	"cambo-gazetteer/internal/middleware"
	"cambo-gazetteer/internal/store"
	"cambo-gazetteer/internal/tracing"
	"cambo-gazetteer/internal/utils"
	"cambo-gazetteer/internal/version"

	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run 返回进程退出码；所有 defer 在返回前执行，保证存储与 Redis 连接、追踪导出被释放
func run(args []string) int {
	fs := flag.NewFlagSet("gazetteer", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config file (defaults to $CONFIG_FILE)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.L().Error("config_error", "err", err)
		return 1
	}
	// 日志初始化
	l := logger.Setup(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	l.Debug("log_init_ok")
	// 容器内按 cgroup 配额设置 GOMAXPROCS
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, v ...any) {
		l.Debug("maxprocs", "msg", fmt.Sprintf(format, v...))
	})); err != nil {
		l.Warn("maxprocs_error", "err", err)
	}
	l.Debug("config_api_base", "base", cfg.APIBase)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.TracingExporter, "cambo-gazetteer", version.Version, os.Stdout)
	if err != nil {
		l.Error("tracing_error", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		l.Error("db_open_error", "driver", cfg.DBDriver, "err", err)
		return 1
	}
	defer st.Close()

	// 本地 LRU 在前，Redis（可选）在后
	var respCache cache.Cache
	if cfg.CacheLRUSize > 0 {
		respCache = cache.NewLRU(cfg.CacheLRUSize, cfg.CacheTTL)
	}
	if rc := utils.OpenRedis(ctx, cfg); rc != nil {
		defer rc.Close()
		rcache := cache.NewRedis(rc, cfg.CacheTTL)
		if respCache == nil {
			respCache = rcache
		} else {
			respCache = cache.NewLayered(respCache, rcache)
		}
	} else {
		l.Info("redis_disabled")
	}

	svc := gazetteer.New(st, gazetteer.WithSiblingsLimit(cfg.SiblingsLimit), gazetteer.WithLogger(l))
	opts := api.Options{
		APIBase:  cfg.APIBase,
		Version:  version.Version,
		Cache:    respCache,
		CacheTTL: cfg.CacheTTL,
		Logger:   l,
	}
	if cfg.RateLimitEnabled {
		opts.Limiter = middleware.RateLimit(cfg.RateLimitQPS)
		l.Info("rate_limit_enabled", "qps", cfg.RateLimitQPS)
	}

	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(svc, opts),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if cfg.TLSEnable {
			if err := utils.EnsureSelfSignedCert(cfg.TLSCertPath, cfg.TLSKeyPath, "gazetteer.local"); err != nil {
				errCh <- err
				return
			}
			l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLSCertPath, "commit", version.Commit)
			errCh <- s.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
			return
		}
		l.Info("listening", "addr", cfg.Addr, "commit", version.Commit)
		errCh <- s.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("server_error", "err", err)
			return 1
		}
	case <-ctx.Done():
		l.Info("shutdown_begin")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil {
			l.Error("shutdown_error", "err", err)
		}
		l.Info("shutdown_done")
	}
	return 0
}
