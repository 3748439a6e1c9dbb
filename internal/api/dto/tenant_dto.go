package dto

import "time"

type CreateTenantRequest struct {
	Name string `json:"name" binding:"required,min=1,max=128"`
}

type UpdateTenantRequest struct {
	Name string `json:"name" binding:"required,min=1,max=128"`
}

type TenantInfo struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	StoreCount int64     `json:"store_count"`
	CreatedAt  time.Time `json:"created_at"`
}
