package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hostpulse/airbnb-sync/internal/model"
)

// AccountRepository 账户仓储
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository 创建账户仓储
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateOrUpdate 创建账户, 已存在时更新凭证 (幂等)
func (r *AccountRepository) CreateOrUpdate(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"customer_id", "airbnb_cookie", "x_client_version", "user_agent",
			"is_active", "deleted_at", "updated_at",
		}),
	}).Create(account).Error
}

// GetByID 根据账户ID查询 (含软删除账户)
func (r *AccountRepository) GetByID(ctx context.Context, accountID string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&account).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// ListFilter 账户列表查询条件
type ListFilter struct {
	ActiveOnly     bool
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// List 查询账户列表
func (r *AccountRepository) List(ctx context.Context, filter ListFilter) ([]*model.Account, error) {
	var accounts []*model.Account
	query := r.db.WithContext(ctx).Order("account_id ASC")

	if !filter.IncludeDeleted {
		query = query.Where("deleted_at IS NULL")
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	err := query.Find(&accounts).Error
	return accounts, err
}

// ListSyncable 查询可同步账户 (活跃且未删除, 按账户ID稳定排序)
func (r *AccountRepository) ListSyncable(ctx context.Context) ([]*model.Account, error) {
	return r.List(ctx, ListFilter{ActiveOnly: true})
}

// Count 统计账户数量
func (r *AccountRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&model.Account{})

	if !filter.IncludeDeleted {
		query = query.Where("deleted_at IS NULL")
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	err := query.Count(&count).Error
	return count, err
}

// Update 更新账户字段
func (r *AccountRepository) Update(ctx context.Context, accountID string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_id = ? AND deleted_at IS NULL", accountID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SoftDelete 软删除账户, 删除后不再参与同步
func (r *AccountRepository) SoftDelete(ctx context.Context, accountID string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_id = ? AND deleted_at IS NULL", accountID).
		Updates(map[string]interface{}{
			"deleted_at": &now,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Restore 恢复软删除账户
func (r *AccountRepository) Restore(ctx context.Context, accountID string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_id = ? AND deleted_at IS NOT NULL", accountID).
		Updates(map[string]interface{}{
			"deleted_at": nil,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkSynced 记录同步完成时间 (仅在整轮房源遍历结束后调用)
func (r *AccountRepository) MarkSynced(ctx context.Context, accountID string, syncedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_id = ?", accountID).
		Updates(map[string]interface{}{
			"last_sync_at": &syncedAt,
			"updated_at":   time.Now(),
		}).Error
}
