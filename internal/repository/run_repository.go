package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/hostpulse/airbnb-sync/internal/model"
)

// RunRepository 同步运行记录仓储
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository 创建同步运行记录仓储
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create 创建运行记录
func (r *RunRepository) Create(ctx context.Context, run *model.SyncRun) error {
	run.CreatedAt = time.Now().UnixMilli()
	return r.db.WithContext(ctx).Create(run).Error
}

// Update 更新运行记录
func (r *RunRepository) Update(ctx context.Context, run *model.SyncRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// GetLatestByAccount 获取账户最新运行记录
func (r *RunRepository) GetLatestByAccount(ctx context.Context, accountID string) (*model.SyncRun, error) {
	var run model.SyncRun
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("started_at DESC").
		First(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// ListByAccount 查询账户运行历史
func (r *RunRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*model.SyncRun, error) {
	var runs []*model.SyncRun
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// CleanupOldRecords 清理旧的运行记录
func (r *RunRepository) CleanupOldRecords(ctx context.Context, beforeTime int64, batchSize int) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("started_at < ?", beforeTime).
		Limit(batchSize).
		Delete(&model.SyncRun{})
	return result.RowsAffected, result.Error
}

// MarkStaleRunningAsFailed 标记卡住的运行为失败
func (r *RunRepository) MarkStaleRunningAsFailed(ctx context.Context, threshold time.Duration) (int64, error) {
	staleTime := time.Now().Add(-threshold).UnixMilli()
	errorMsg := "sync run timed out (marked as failed by cleanup)"

	result := r.db.WithContext(ctx).
		Model(&model.SyncRun{}).
		Where("status = ? AND started_at < ?", model.RunStatusRunning, staleTime).
		Updates(map[string]interface{}{
			"status":        model.RunStatusFailed,
			"finished_at":   time.Now().UnixMilli(),
			"error_message": errorMsg,
		})
	return result.RowsAffected, result.Error
}
