package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// RunStatus 同步运行状态
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusFailed  RunStatus = "failed"
	RunStatusSkipped RunStatus = "skipped"
)

// RunTrigger 触发来源
type RunTrigger string

const (
	RunTriggerScheduled RunTrigger = "scheduled"
	RunTriggerManual    RunTrigger = "manual"
	RunTriggerStartup   RunTrigger = "startup"
)

// ListingFailure 单个房源的失败明细
type ListingFailure struct {
	ListingID   string `json:"listing_id"`
	ListingName string `json:"listing_name,omitempty"`
	Reason      string `json:"reason"`
}

// FailureList jsonb 失败明细列表
type FailureList []ListingFailure

// Value 实现 driver.Valuer 接口
func (f FailureList) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// Scan 实现 sql.Scanner 接口
func (f *FailureList) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	default:
		return errors.New("unsupported type for FailureList")
	}
}

// SyncRun 一次账户同步的执行记录
type SyncRun struct {
	ID             int64       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AccountID      string      `gorm:"column:account_id;not null;index" json:"account_id"`
	Trigger        RunTrigger  `gorm:"column:trigger;type:varchar(20);not null" json:"trigger"`
	Status         RunStatus   `gorm:"column:status;type:varchar(20);not null" json:"status"`
	StartedAt      int64       `gorm:"column:started_at;not null" json:"started_at"`
	FinishedAt     *int64      `gorm:"column:finished_at" json:"finished_at"`
	DurationMs     *int        `gorm:"column:duration_ms" json:"duration_ms"`
	WindowStart    *time.Time  `gorm:"column:window_start;type:date" json:"window_start"`
	WindowEnd      *time.Time  `gorm:"column:window_end;type:date" json:"window_end"`
	ListingsTotal  int         `gorm:"column:listings_total;not null;default:0" json:"listings_total"`
	ListingsOK     int         `gorm:"column:listings_ok;not null;default:0" json:"listings_ok"`
	ListingsFailed int         `gorm:"column:listings_failed;not null;default:0" json:"listings_failed"`
	Failures       FailureList `gorm:"column:failures;type:jsonb" json:"failures,omitempty"`
	RowsWritten    int         `gorm:"column:rows_written;not null;default:0" json:"rows_written"`
	ErrorMessage   *string     `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	CreatedAt      int64       `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName 表名
func (SyncRun) TableName() string {
	return "airbnb_sync_runs"
}
