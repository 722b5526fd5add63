// Kinmu 排班服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kinmu/kinmu/internal/config"
	"github.com/kinmu/kinmu/internal/database"
	"github.com/kinmu/kinmu/internal/metrics"
	"github.com/kinmu/kinmu/internal/middleware"
	"github.com/kinmu/kinmu/internal/repository"
	"github.com/kinmu/kinmu/internal/session"
	"github.com/kinmu/kinmu/pkg/logger"
	"github.com/kinmu/kinmu/pkg/scheduler"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Logger())

	if err := run(cfg); err != nil {
		logger.Fatal().Err(err).Msg("服务异常退出")
	}
}

func run(cfg *config.Config) error {
	m := metrics.New()

	engine, err := scheduler.New(cfg.Engine(), scheduler.WithRecorder(m))
	if err != nil {
		return err
	}

	deps := routerDeps{
		cfg:     cfg,
		engine:  engine,
		metrics: m,
		version: Version,
		build:   BuildTime,
		commit:  GitCommit,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.Enabled {
		db, err := database.New(&cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		repo := repository.NewPreferenceRepository(db)
		deps.db = db
		deps.preferences = repo
		if cfg.Retention.Months > 0 {
			go runRetention(ctx, repo, cfg.Retention, m)
		}
	}

	if cfg.Redis.Enabled {
		client, err := session.NewRedisClient(cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		deps.redis = client
		deps.sessions = session.NewStore(client,
			session.WithTTL(cfg.Session.TTL),
			session.WithPrefix(cfg.Session.KeyPrefix),
		)
	}

	limiter := middleware.NewRateLimiter(cfg.API.RateLimit, time.Minute)
	go limiter.Run(ctx.Done())
	deps.limiter = limiter

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      newRouter(deps),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.API.Timeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("env", cfg.App.Env).
			Str("version", Version).
			Bool("database", cfg.Database.Enabled).
			Bool("redis", cfg.Redis.Enabled).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("正在关闭服务器...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("服务器已关闭")
	return nil
}

// runRetention 定期删除保留窗口外的偏好记录
func runRetention(ctx context.Context, repo *repository.PreferenceRepository, cfg config.RetentionConfig, m *metrics.Metrics) {
	purge := func() {
		n, err := repo.PurgeOutside(ctx, time.Now(), cfg.Months)
		if err != nil {
			logger.Warn().Err(err).Msg("清理过期偏好失败")
			return
		}
		m.AddPurged(n)
		if n > 0 {
			logger.Info().Int64("rows", n).Int("months", cfg.Months).Msg("清理过期偏好")
		}
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	purge()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			purge()
		case <-ctx.Done():
			return
		}
	}
}
