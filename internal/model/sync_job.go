package model

import "time"

// 同步实体范围
const (
	SyncEntityAll       = "all"
	SyncEntityProducts  = "products"
	SyncEntityCustomers = "customers"
	SyncEntityOrders    = "orders"
)

// 同步任务状态
const (
	SyncStatusQueued    = "queued"
	SyncStatusRunning   = "running"
	SyncStatusSucceeded = "succeeded"
	SyncStatusPartial   = "partial"
	SyncStatusFailed    = "failed"
)

// 触发方式
const (
	SyncTriggerManual   = "manual"
	SyncTriggerSchedule = "schedule"
)

// SyncJob 一次同步任务的记录
type SyncJob struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	StoreID    int64      `gorm:"index;not null" json:"store_id"`
	Entity     string     `gorm:"size:16;not null" json:"entity"`
	Status     string     `gorm:"size:16;index;not null" json:"status"`
	Trigger    string     `gorm:"size:16" json:"trigger"`
	Total      int        `json:"total"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	Errors     int        `json:"errors"`
	Message    string     `gorm:"size:1024" json:"message"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

func (SyncJob) TableName() string { return "sync_jobs" }

// IsActive 排队或运行中
func (j *SyncJob) IsActive() bool {
	return j.Status == SyncStatusQueued || j.Status == SyncStatusRunning
}

// AllModels 参与自动迁移的模型
func AllModels() []interface{} {
	return []interface{}{
		&Tenant{},
		&Store{},
		&User{},
		&Product{},
		&Customer{},
		&Order{},
		&OrderLineItem{},
		&SyncJob{},
	}
}
