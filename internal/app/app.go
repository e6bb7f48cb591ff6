// Package app 提供 airbnb-sync 服务的应用入口
//
// ========================================
// airbnb-sync 服务对接总览
// ========================================
//
// ## 服务信息
// - 服务名: airbnb-sync
// - HTTP 端口: 8080
// - 数据库: airbnb_sync (PostgreSQL)
//
// ## 依赖服务
// - PostgreSQL: 数据持久化 (账户、同步运行记录、三类指标宽表)
// - Redis: 跨实例同步互斥锁
// - Airbnb 上游 API: 房源枚举与指标抓取
//
// ## 核心流程
// 1. 每日定时 (默认 UTC 05:00) 扫描全部可同步账户并逐个派发同步
// 2. 每个账户持 Redis 分布式锁执行, 锁被其他实例持有则记 skipped
// 3. 首次同步深回溯, 之后按增量窗口滚动; 窗口按周对齐并分片抓取
// 4. 手动触发通过 POST /api/v1/accounts/:id/sync, 同账户进行中则 409
//
// ========================================
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hostpulse/airbnb-sync/internal/airbnb"
	"github.com/hostpulse/airbnb-sync/internal/config"
	"github.com/hostpulse/airbnb-sync/internal/handler"
	"github.com/hostpulse/airbnb-sync/internal/repository"
	"github.com/hostpulse/airbnb-sync/internal/router"
	"github.com/hostpulse/airbnb-sync/internal/syncer"
	"github.com/hostpulse/airbnb-sync/migrations"
	"github.com/hostpulse/airbnb-sync/pkg/logger"
	"github.com/hostpulse/airbnb-sync/pkg/migrate"
)

// App 同步服务应用
type App struct {
	cfg *config.Config

	// 基础设施
	db          *gorm.DB
	redisClient redis.UniversalClient
	httpServer  *http.Server

	// 仓储层
	accountRepo  *repository.AccountRepository
	insightsRepo *repository.InsightsRepository
	runRepo      *repository.RunRepository

	// 同步管线
	airbnbClient *airbnb.Client
	orchestrator *syncer.Orchestrator
	coordinator  *syncer.Coordinator

	// HTTP 层
	healthHandler *handler.HealthHandler

	// 上下文
	ctx    context.Context
	cancel context.CancelFunc
}

// New 创建应用实例
func New(cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run 启动应用
func (a *App) Run() error {
	// 1. 初始化数据库
	if err := a.initDB(); err != nil {
		return fmt.Errorf("failed to init database: %w", err)
	}

	// 2. 初始化 Redis
	if err := a.initRedis(); err != nil {
		return fmt.Errorf("failed to init redis: %w", err)
	}

	// 3. 初始化仓储层
	a.initRepositories()

	// 4. 回收上次进程异常退出遗留的 running 记录
	a.recoverStaleRuns()

	// 5. 初始化同步管线
	a.initSyncer()

	// 6. 启动调度器 (含可选的启动补扫)
	if err := a.coordinator.Start(); err != nil {
		return fmt.Errorf("failed to start coordinator: %w", err)
	}

	// 7. 启动 HTTP 服务
	if err := a.startHTTP(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	a.healthHandler.SetReady(true)
	return nil
}

// Shutdown 优雅关闭
func (a *App) Shutdown(ctx context.Context) error {
	logger.Info("shutting down airbnb-sync service...")

	// 摘除就绪状态, 停止接收新请求
	if a.healthHandler != nil {
		a.healthHandler.SetReady(false)
	}
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			logger.Warn("http server shutdown error", zap.Error(err))
		}
	}

	// 停止调度器并等待进行中的同步收尾
	if a.coordinator != nil {
		if err := a.coordinator.Stop(ctx); err != nil {
			logger.Warn("coordinator stop error", zap.Error(err))
		}
	}

	// 关闭 Redis
	if a.redisClient != nil {
		a.redisClient.Close()
	}

	// 关闭数据库
	if a.db != nil {
		sqlDB, _ := a.db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	}

	a.cancel()
	logger.Info("airbnb-sync service stopped")
	return nil
}

// initDB 初始化数据库
func (a *App) initDB() error {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		a.cfg.Postgres.Host,
		a.cfg.Postgres.Port,
		a.cfg.Postgres.User,
		a.cfg.Postgres.Password,
		a.cfg.Postgres.Database,
	)

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(a.cfg.Postgres.MaxConnections)
	sqlDB.SetMaxIdleConns(a.cfg.Postgres.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(a.cfg.Postgres.ConnMaxLifetimeMinutes) * time.Minute)

	a.db = db
	logger.Info("database connected",
		zap.String("host", a.cfg.Postgres.Host),
		zap.String("database", a.cfg.Postgres.Database))

	// 自动迁移
	migrator := migrate.NewMigrator(sqlDB, a.cfg.Service.Name, logger.L())
	if err := migrator.AutoMigrate(migrations.FS, "."); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("database migrated")

	return nil
}

// initRedis 初始化 Redis
func (a *App) initRedis() error {
	a.redisClient = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", a.cfg.Redis.Host, a.cfg.Redis.Port),
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
		PoolSize: a.cfg.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.redisClient.Ping(ctx).Err(); err != nil {
		return err
	}

	logger.Info("redis connected",
		zap.String("host", a.cfg.Redis.Host),
		zap.Int("db", a.cfg.Redis.DB))

	return nil
}

// initRepositories 初始化仓储层
func (a *App) initRepositories() {
	a.accountRepo = repository.NewAccountRepository(a.db)
	a.insightsRepo = repository.NewInsightsRepository(a.db)
	a.runRepo = repository.NewRunRepository(a.db)

	logger.Info("repositories initialized")
}

// recoverStaleRuns 把超过两倍运行超时仍为 running 的记录标记为 failed
// (进程被 kill 时来不及落 finished 状态)
func (a *App) recoverStaleRuns() {
	timeout := time.Duration(a.cfg.Sync.RunTimeoutMinutes) * time.Minute
	if timeout <= 0 {
		timeout = time.Hour
	}

	ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
	defer cancel()

	n, err := a.runRepo.MarkStaleRunningAsFailed(ctx, 2*timeout)
	if err != nil {
		logger.Warn("failed to recover stale runs", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Info("recovered stale running records", zap.Int64("count", n))
	}
}

// initSyncer 初始化同步管线
func (a *App) initSyncer() {
	a.airbnbClient = airbnb.NewClient(a.cfg.Airbnb)

	a.orchestrator = syncer.NewOrchestrator(
		a.accountRepo,
		a.insightsRepo,
		a.runRepo,
		a.airbnbClient,
		a.cfg.Sync,
	)

	a.coordinator = syncer.NewCoordinator(
		a.orchestrator,
		a.accountRepo,
		a.runRepo,
		a.redisClient,
		a.cfg.Sync,
	)

	logger.Info("syncer initialized",
		zap.Int("cron_hour", a.cfg.Sync.CronHour),
		zap.Int("cron_minute", a.cfg.Sync.CronMinute),
		zap.Int("listing_concurrency", a.cfg.Sync.ListingConcurrency),
		zap.Bool("startup_sync", a.cfg.Sync.StartupSync),
		zap.Bool("dry_run", a.cfg.Sync.DryRun))
}

// startHTTP 启动 HTTP 服务
func (a *App) startHTTP() error {
	if a.cfg.Service.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	r := router.New(engine)
	r.RegisterMiddleware()

	a.healthHandler = handler.NewHealthHandler(a.db, a.redisClient)
	accountHandler := handler.NewAccountHandler(a.accountRepo, a.insightsRepo)
	syncHandler := handler.NewSyncHandler(a.coordinator, a.runRepo)
	r.RegisterRoutes(a.healthHandler, accountHandler, syncHandler)

	addr := fmt.Sprintf(":%d", a.cfg.Service.HTTPPort)
	a.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting HTTP server",
		zap.String("addr", addr),
		zap.String("service", a.cfg.Service.Name))

	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}
