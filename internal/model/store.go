package model

import "time"

// Store 一个已接入的 Shopify 店铺
type Store struct {
	BaseModel
	TenantID int64  `gorm:"index;not null" json:"tenant_id"`
	Name     string `gorm:"size:255" json:"name"`
	Domain   string `gorm:"size:255;uniqueIndex;not null" json:"domain"`
	// 明文保存，接口响应中不输出
	AccessToken  string     `gorm:"size:255;not null" json:"-"`
	Currency     string     `gorm:"size:8" json:"currency"`
	LastSyncedAt *time.Time `json:"last_synced_at"`

	// 只用于迁移时建立 store_id 外键：删除店铺级联清理，已删除店铺的写入直接失败
	Products  []Product       `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE" json:"-"`
	Customers []Customer      `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE" json:"-"`
	Orders    []Order         `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE" json:"-"`
	LineItems []OrderLineItem `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE" json:"-"`
	SyncJobs  []SyncJob       `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Store) TableName() string { return "stores" }
