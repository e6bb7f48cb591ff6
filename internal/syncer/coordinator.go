package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hostpulse/airbnb-sync/internal/config"
	"github.com/hostpulse/airbnb-sync/internal/metrics"
	"github.com/hostpulse/airbnb-sync/internal/model"
	"github.com/hostpulse/airbnb-sync/internal/repository"
	"github.com/hostpulse/airbnb-sync/pkg/logger"
)

var (
	// ErrSyncInFlight 同一账户已有同步在执行
	ErrSyncInFlight = errors.New("sync already in flight for account")
	// ErrAccountNotFound 账户不存在
	ErrAccountNotFound = errors.New("account not found")
	// ErrCoordinatorStopped 调度器正在关闭, 不再接受新同步
	ErrCoordinatorStopped = errors.New("sync coordinator is stopping")
)

// 运行记录保留清理的单批删除量
const runRetentionBatchSize = 500

// Coordinator 同步调度器, 负责定时触发、手动触发和启动时补偿同步
type Coordinator struct {
	orch     *Orchestrator
	accounts *repository.AccountRepository
	runs     *repository.RunRepository
	redis    redis.UniversalClient
	cfg      config.SyncConfig

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]struct{}
	stopping bool
}

// NewCoordinator 创建调度器
func NewCoordinator(
	orch *Orchestrator,
	accounts *repository.AccountRepository,
	runs *repository.RunRepository,
	redisClient redis.UniversalClient,
	cfg config.SyncConfig,
) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		orch:     orch,
		accounts: accounts,
		runs:     runs,
		redis:    redisClient,
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]struct{}),
	}
}

// Start 注册定时任务并启动调度
func (c *Coordinator) Start() error {
	spec := fmt.Sprintf("0 %d %d * * *", c.cfg.CronMinute, c.cfg.CronHour)
	if _, err := c.cron.AddFunc(spec, c.runScheduledSweep); err != nil {
		return fmt.Errorf("failed to register sync cron: %w", err)
	}

	// 运行记录保留清理, 错开在账户扫描一小时后
	retentionSpec := fmt.Sprintf("0 %d %d * * *", c.cfg.CronMinute, (c.cfg.CronHour+1)%24)
	if _, err := c.cron.AddFunc(retentionSpec, c.runRetentionSweep); err != nil {
		return fmt.Errorf("failed to register retention cron: %w", err)
	}

	c.cron.Start()
	logger.Info("sync coordinator started",
		zap.String("cron", spec),
		zap.Bool("startup_sync", c.cfg.StartupSync))

	if c.cfg.StartupSync {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.runStartupSweep()
		}()
	}

	return nil
}

// Stop 停止派发新同步并等待在途同步自然收尾;
// 只有超过 ctx 期限仍未结束时才强制取消在途运行
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.stopping = true
	c.mu.Unlock()

	stopCtx := c.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		c.cancel()
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.cancel()
		logger.Info("sync coordinator stopped")
		return nil
	case <-ctx.Done():
		// 超时兜底: 硬取消在途运行, 避免进程退出被无限拖住
		c.cancel()
		logger.Warn("sync coordinator stop timed out, cancelling in-flight syncs")
		return ctx.Err()
	}
}

// TriggerSync 手动触发单账户同步, 同账户在途时直接拒绝
func (c *Coordinator) TriggerSync(accountID string, trigger model.RunTrigger) error {
	account, err := c.accounts.GetByID(c.ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return ErrAccountNotFound
	}
	if !account.IsActive || account.DeletedAt != nil {
		return ErrAccountInactive
	}
	if !account.HasCredentials() {
		return ErrMissingCredentials
	}

	return c.dispatch(account, trigger)
}

// runScheduledSweep 定时全量扫描: 逐个触发所有可同步账户
func (c *Coordinator) runScheduledSweep() {
	accounts, err := c.accounts.ListSyncable(c.ctx)
	if err != nil {
		logger.Error("failed to list syncable accounts for scheduled sweep", zap.Error(err))
		return
	}

	logger.Info("scheduled sync sweep starting", zap.Int("accounts", len(accounts)))
	for _, account := range accounts {
		if err := c.dispatch(account, model.RunTriggerScheduled); err != nil {
			if errors.Is(err, ErrSyncInFlight) {
				logger.Warn("scheduled sync skipped, previous run still in flight",
					zap.String("account_id", account.AccountID))
				continue
			}
			logger.Error("failed to dispatch scheduled sync",
				zap.String("account_id", account.AccountID),
				zap.Error(err))
		}
	}
}

// runStartupSweep 启动补偿: 只同步从未成功同步过的账户
func (c *Coordinator) runStartupSweep() {
	accounts, err := c.accounts.ListSyncable(c.ctx)
	if err != nil {
		logger.Error("failed to list accounts for startup sweep", zap.Error(err))
		return
	}

	for _, account := range accounts {
		if !account.SyncState().IsFirstRun() {
			continue
		}
		logger.Info("startup sync for never-synced account",
			zap.String("account_id", account.AccountID))
		if err := c.dispatch(account, model.RunTriggerStartup); err != nil && !errors.Is(err, ErrSyncInFlight) {
			logger.Error("failed to dispatch startup sync",
				zap.String("account_id", account.AccountID),
				zap.Error(err))
		}
	}
}

// runRetentionSweep 按保留期批量删除过老的运行记录
func (c *Coordinator) runRetentionSweep() {
	days := c.cfg.RunRetentionDays
	if days <= 0 {
		return
	}

	before := time.Now().AddDate(0, 0, -days).UnixMilli()
	var total int64
	for {
		n, err := c.runs.CleanupOldRecords(c.ctx, before, runRetentionBatchSize)
		if err != nil {
			logger.Error("failed to clean up old sync runs", zap.Error(err))
			break
		}
		total += n
		if n < runRetentionBatchSize {
			break
		}
	}

	if total > 0 {
		logger.Info("old sync runs cleaned up",
			zap.Int64("deleted", total),
			zap.Int("retention_days", days))
	}
}

// dispatch 登记在途状态并异步执行, 同账户并发触发直接丢弃
func (c *Coordinator) dispatch(account *model.Account, trigger model.RunTrigger) error {
	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		return ErrCoordinatorStopped
	}
	if _, busy := c.inflight[account.AccountID]; busy {
		c.mu.Unlock()
		return ErrSyncInFlight
	}
	c.inflight[account.AccountID] = struct{}{}
	c.mu.Unlock()

	c.wg.Add(1)
	metrics.RunningSyncsGauge.Inc()

	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.inflight, account.AccountID)
			c.mu.Unlock()
			metrics.RunningSyncsGauge.Dec()
			c.wg.Done()
		}()
		c.runOne(account, trigger)
	}()

	return nil
}

func (c *Coordinator) runOne(account *model.Account, trigger model.RunTrigger) {
	timeout := time.Duration(c.cfg.RunTimeoutMinutes) * time.Minute
	if timeout <= 0 {
		timeout = time.Hour
	}
	lockTTL := time.Duration(c.cfg.LockTTLMinutes) * time.Minute
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}

	runCtx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()

	lock := NewAccountLock(c.redis, account.AccountID, lockTTL, true)
	acquired, err := lock.TryLock(runCtx)
	if err != nil {
		logger.Error("failed to acquire sync lock",
			zap.String("account_id", account.AccountID),
			zap.Error(err))
		return
	}
	if !acquired {
		logger.Warn("sync lock held by another instance, skipping",
			zap.String("account_id", account.AccountID))
		c.recordSkipped(account.AccountID, trigger)
		return
	}
	defer func() {
		unlockCtx, unlockCancel := context.WithTimeout(context.WithoutCancel(runCtx), 5*time.Second)
		defer unlockCancel()
		if err := lock.Unlock(unlockCtx); err != nil {
			logger.Warn("failed to release sync lock",
				zap.String("account_id", account.AccountID),
				zap.Error(err))
		}
	}()

	report, err := c.orch.Run(runCtx, account, trigger)
	if err != nil {
		logger.Error("account sync failed",
			zap.String("account_id", account.AccountID),
			zap.String("trigger", string(trigger)),
			zap.Error(err))
		return
	}

	logger.Info("account sync finished",
		zap.String("account_id", account.AccountID),
		zap.String("trigger", string(trigger)),
		zap.Int("listings_ok", report.ListingsOK),
		zap.Int("listings_failed", report.ListingsFailed),
		zap.Int("rows_written", report.RowsWritten))
}

// recordSkipped 分布式锁被占用时留痕, 便于排查多实例竞争
func (c *Coordinator) recordSkipped(accountID string, trigger model.RunTrigger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now().UnixMilli()
	run := &model.SyncRun{
		AccountID:  accountID,
		Trigger:    trigger,
		Status:     model.RunStatusSkipped,
		StartedAt:  now,
		FinishedAt: &now,
	}
	if err := c.runs.Create(ctx, run); err != nil {
		logger.Error("failed to record skipped run",
			zap.String("account_id", accountID),
			zap.Error(err))
	}
}
