package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Product 店铺商品镜像
type Product struct {
	MirrorModel
	Title       string                      `gorm:"size:512;not null" json:"title"`
	Vendor      string                      `gorm:"size:255" json:"vendor"`
	ProductType string                      `gorm:"size:255" json:"product_type"`
	Status      string                      `gorm:"size:32" json:"status"`
	Handle      string                      `gorm:"size:255" json:"handle"`
	Tags        datatypes.JSONSlice[string] `json:"tags"`
	// 取第一个 variant 的价格
	Price    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"price"`
	Images   datatypes.JSON  `json:"images"`
	Variants datatypes.JSON  `json:"variants"`

	ExternalCreatedAt time.Time `json:"external_created_at"`
	ExternalUpdatedAt time.Time `json:"external_updated_at"`
}

func (Product) TableName() string { return "products" }
