package model

import (
	"fmt"
	"time"
)

// BaseModel 自增主键实体的公共字段
// 删除均为物理删除（店铺域名唯一，软删除会阻止重新接入）
type BaseModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MirrorModel 从平台同步来的实体的公共字段
// ID = "<storeId>_<externalId>"，保证同一条外部数据重复同步时命中同一行
type MirrorModel struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	StoreID    int64     `gorm:"index;not null" json:"store_id"`
	ExternalID int64     `gorm:"not null" json:"external_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MirrorID 生成镜像实体主键
func MirrorID(storeID, externalID int64) string {
	return fmt.Sprintf("%d_%d", storeID, externalID)
}
