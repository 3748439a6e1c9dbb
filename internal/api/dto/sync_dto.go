package dto

import "time"

// SyncTriggerResponse 触发同步的响应体 {success, message, stats}
type SyncTriggerResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Stats   *SyncJobStats `json:"stats"`
}

type SyncJobStats struct {
	JobID   string `json:"job_id"`
	Entity  string `json:"entity"`
	Status  string `json:"status"`
	Total   int    `json:"total"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Errors  int    `json:"errors"`
}

type SyncJobInfo struct {
	ID         string     `json:"id"`
	StoreID    int64      `json:"store_id"`
	Entity     string     `json:"entity"`
	Status     string     `json:"status"`
	Trigger    string     `json:"trigger"`
	Total      int        `json:"total"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	Errors     int        `json:"errors"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// SyncStatusResponse 店铺同步状态
type SyncStatusResponse struct {
	StoreID      int64        `json:"store_id"`
	LastSyncedAt *time.Time   `json:"last_synced_at"`
	Syncing      bool         `json:"syncing"`
	LatestJob    *SyncJobInfo `json:"latest_job"`
}
