package model

import "time"

// Account 同步租户，一个 Account 对应一组 Airbnb 凭证及其房源
type Account struct {
	AccountID  string  `gorm:"column:account_id;primaryKey" json:"account_id"`
	CustomerID *string `gorm:"column:customer_id;index" json:"customer_id"`

	// Airbnb 请求头凭证
	AirbnbCookie   string `gorm:"column:airbnb_cookie;type:text;not null" json:"-"`
	XClientVersion string `gorm:"column:x_client_version;not null" json:"-"`
	UserAgent      string `gorm:"column:user_agent;type:text;not null" json:"-"`

	// 状态
	IsActive   bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	LastSyncAt *time.Time `gorm:"column:last_sync_at" json:"last_sync_at"`

	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
}

// TableName 表名
func (Account) TableName() string {
	return "airbnb_accounts"
}

// SyncState 同步状态标签, 显式区分"从未同步"与"已于某时刻同步"
// (避免用零值时间戳冒充"从未同步")
type SyncState struct {
	synced bool
	at     time.Time
}

// NeverSynced 从未完成过同步
func NeverSynced() SyncState {
	return SyncState{}
}

// SyncedAt 最近一次完成同步的时刻
func SyncedAt(t time.Time) SyncState {
	return SyncState{synced: true, at: t}
}

// IsFirstRun 是否首次同步 (决定回溯窗口深度)
func (s SyncState) IsFirstRun() bool {
	return !s.synced
}

// At 最近同步时刻, 仅在已同步时有效
func (s SyncState) At() (time.Time, bool) {
	return s.at, s.synced
}

// SyncState 从可空时间戳推导同步状态标签
func (a *Account) SyncState() SyncState {
	if a.LastSyncAt == nil {
		return NeverSynced()
	}
	return SyncedAt(*a.LastSyncAt)
}

// HasCredentials 凭证是否齐全
func (a *Account) HasCredentials() bool {
	return a.AirbnbCookie != "" && a.XClientVersion != "" && a.UserAgent != ""
}
