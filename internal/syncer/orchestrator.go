package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hostpulse/airbnb-sync/internal/config"
	"github.com/hostpulse/airbnb-sync/internal/metrics"
	"github.com/hostpulse/airbnb-sync/internal/model"
	"github.com/hostpulse/airbnb-sync/internal/repository"
	"github.com/hostpulse/airbnb-sync/pkg/logger"
)

var (
	// ErrAccountInactive 账户未激活或已删除
	ErrAccountInactive = errors.New("account is inactive")
	// ErrMissingCredentials 账户缺少会话凭证
	ErrMissingCredentials = errors.New("account has no credentials")
)

// SyncReport 一次账户同步的结果汇总
type SyncReport struct {
	AccountID      string
	Window         Window
	FirstRun       bool
	ListingsTotal  int
	ListingsOK     int
	ListingsFailed int
	Failures       []model.ListingFailure
	RowsWritten    int
}

// Orchestrator 账户同步编排器
// 状态机: Planning → Enumerating → PerListing(×N) → Finalizing
type Orchestrator struct {
	accounts *repository.AccountRepository
	insights *repository.InsightsRepository
	runs     *repository.RunRepository
	provider MetricsProvider
	cfg      config.SyncConfig
}

// NewOrchestrator 创建账户同步编排器
func NewOrchestrator(
	accounts *repository.AccountRepository,
	insights *repository.InsightsRepository,
	runs *repository.RunRepository,
	provider MetricsProvider,
	cfg config.SyncConfig,
) *Orchestrator {
	return &Orchestrator{
		accounts: accounts,
		insights: insights,
		runs:     runs,
		provider: provider,
		cfg:      cfg,
	}
}

// Run 执行一次账户同步
// 单个房源失败不中断遍历; 仅前置条件或房源枚举失败返回错误。
// 枚举成功即更新 last_sync_at, 与单房源成败无关 —— 完成过整轮遍历的账户
// 不再按首次同步回填, 失败房源留待下次增量窗口覆盖。
func (o *Orchestrator) Run(ctx context.Context, account *model.Account, trigger model.RunTrigger) (*SyncReport, error) {
	// Planning: 前置检查 + 计算窗口
	if !account.IsActive || account.DeletedAt != nil {
		return nil, ErrAccountInactive
	}
	if !account.HasCredentials() {
		return nil, ErrMissingCredentials
	}

	now := time.Now().UTC()
	scrapeDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	firstRun := account.SyncState().IsFirstRun()
	window := PlanWindow(firstRun, now, o.cfg)

	logger.Info("starting account sync",
		zap.String("account_id", account.AccountID),
		zap.String("trigger", string(trigger)),
		zap.Bool("first_run", firstRun),
		zap.String("window", window.String()))

	run := &model.SyncRun{
		AccountID:   account.AccountID,
		Trigger:     trigger,
		Status:      model.RunStatusRunning,
		StartedAt:   now.UnixMilli(),
		WindowStart: &window.Start,
		WindowEnd:   &window.End,
	}
	if err := o.runs.Create(ctx, run); err != nil {
		logger.Error("failed to record sync run start",
			zap.String("account_id", account.AccountID),
			zap.Error(err))
	}

	report, err := o.execute(ctx, account, window, scrapeDay, firstRun)
	o.finishRun(run, report, err)

	if err != nil {
		return nil, err
	}
	return report, nil
}

func (o *Orchestrator) execute(ctx context.Context, account *model.Account, window Window, scrapeDay time.Time, firstRun bool) (*SyncReport, error) {
	report := &SyncReport{
		AccountID: account.AccountID,
		Window:    window,
		FirstRun:  firstRun,
	}

	// Enumerating: 枚举失败则整次运行失败
	listings, err := o.provider.FetchListings(ctx, accountCredentials(account))
	if err != nil {
		return report, fmt.Errorf("enumerate listings: %w", err)
	}
	report.ListingsTotal = len(listings)

	if len(listings) == 0 {
		logger.Warn("account has no listings", zap.String("account_id", account.AccountID))
	}

	// PerListing: 有界并发, 单房源失败只记录不中断
	concurrency := o.cfg.ListingConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, concurrency)
		aborted bool
	)

	for _, listing := range listings {
		// 停机时收尾当前房源后退出, 不在写入中途撕裂
		select {
		case <-ctx.Done():
			aborted = true
		default:
		}
		if aborted {
			break
		}

		listing := listing
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			result := o.syncListing(ctx, account, listing, window, scrapeDay)

			mu.Lock()
			defer mu.Unlock()
			if result.OK {
				report.ListingsOK++
				report.RowsWritten += result.totalRows()
				metrics.RecordListingSync("ok")
			} else {
				report.ListingsFailed++
				report.Failures = append(report.Failures, model.ListingFailure{
					ListingID:   listing.ID,
					ListingName: listing.InternalName,
					Reason:      result.Reason,
				})
				metrics.RecordListingSync("failed")
				if result.AuthFailure {
					metrics.RecordAuthFailure(account.AccountID)
				}
				logger.Warn("listing sync failed",
					zap.String("account_id", account.AccountID),
					zap.String("listing_id", listing.ID),
					zap.String("reason", result.Reason))
			}
		}()
	}
	wg.Wait()

	if aborted {
		return report, fmt.Errorf("sync aborted: %w", ctx.Err())
	}

	// Finalizing: 枚举成功即视为完成过一轮遍历
	if err := o.accounts.MarkSynced(context.WithoutCancel(ctx), account.AccountID, time.Now().UTC()); err != nil {
		logger.Error("failed to mark account synced",
			zap.String("account_id", account.AccountID),
			zap.Error(err))
	} else {
		metrics.MarkSyncCompleted(account.AccountID)
	}

	logger.Info("account sync finished",
		zap.String("account_id", account.AccountID),
		zap.Int("listings_total", report.ListingsTotal),
		zap.Int("listings_ok", report.ListingsOK),
		zap.Int("listings_failed", report.ListingsFailed),
		zap.Int("rows_written", report.RowsWritten))

	return report, nil
}

// finishRun 收尾运行记录并上报监控指标
func (o *Orchestrator) finishRun(run *model.SyncRun, report *SyncReport, runErr error) {
	finished := time.Now().UTC()
	finishedMs := finished.UnixMilli()
	duration := int(finishedMs - run.StartedAt)
	run.FinishedAt = &finishedMs
	run.DurationMs = &duration

	if report != nil {
		run.ListingsTotal = report.ListingsTotal
		run.ListingsOK = report.ListingsOK
		run.ListingsFailed = report.ListingsFailed
		run.Failures = report.Failures
		run.RowsWritten = report.RowsWritten
	}

	switch {
	case runErr != nil:
		run.Status = model.RunStatusFailed
		msg := runErr.Error()
		run.ErrorMessage = &msg
	case report != nil && report.ListingsFailed > 0:
		run.Status = model.RunStatusPartial
	default:
		run.Status = model.RunStatusSuccess
	}

	metrics.RecordSyncRun(string(run.Trigger), string(run.Status), float64(duration)/1000)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.runs.Update(ctx, run); err != nil {
		logger.Error("failed to update sync run record",
			zap.String("account_id", run.AccountID),
			zap.Error(err))
	}
}
