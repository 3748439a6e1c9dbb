package dto

import "time"

// ConnectStoreRequest 接入店铺
type ConnectStoreRequest struct {
	Domain      string `json:"domain" binding:"required,shopdomain"`
	AccessToken string `json:"access_token" binding:"required,min=8,max=255"`
	Name        string `json:"name" binding:"max=255"`
}

// UpdateStoreRequest 字段为空则不修改
type UpdateStoreRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=255"`
	AccessToken *string `json:"access_token" binding:"omitempty,min=8,max=255"`
}

type StoreListRequest struct {
	Keyword  string `form:"keyword"`
	Page     int    `form:"page,default=1" binding:"min=1"`
	PageSize int    `form:"page_size,default=20" binding:"min=1,max=200"`
}

type StoreInfo struct {
	ID           int64      `json:"id"`
	TenantID     int64      `json:"tenant_id"`
	Name         string     `json:"name"`
	Domain       string     `json:"domain"`
	Currency     string     `json:"currency"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

type StoreListResponse struct {
	List     []StoreInfo `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}
