package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Order 店铺订单镜像
// 行项目以 JSON 原样保存，同时展开到 order_line_items 供聚合查询
type Order struct {
	MirrorModel
	CustomerID        *string         `gorm:"size:64;index" json:"customer_id"`
	Customer          *Customer       `gorm:"foreignKey:CustomerID;constraint:OnDelete:SET NULL" json:"customer,omitempty"`
	Name              string          `gorm:"size:64" json:"name"`
	Email             string          `gorm:"size:255" json:"email"`
	FinancialStatus   string          `gorm:"size:32" json:"financial_status"`
	FulfillmentStatus string          `gorm:"size:32" json:"fulfillment_status"`
	Currency          string          `gorm:"size:8" json:"currency"`
	SubtotalPrice     decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"subtotal_price"`
	TotalPrice        decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_price"`
	TotalTax          decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_tax"`
	TotalDiscounts    decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_discounts"`

	DiscountCodes datatypes.JSONSlice[string] `json:"discount_codes"`
	LineItems     datatypes.JSON              `json:"line_items"`

	ProcessedAt time.Time `gorm:"index" json:"processed_at"`
	// 以下三列在写入时由 ProcessedAt (UTC) 计算，聚合时直接 GROUP BY
	OrderDate    string `gorm:"size:10;index" json:"order_date"`
	OrderWeekday int    `json:"order_weekday"`
	OrderHour    int    `json:"order_hour"`

	ExternalCreatedAt time.Time `json:"external_created_at"`
	ExternalUpdatedAt time.Time `json:"external_updated_at"`
}

func (Order) TableName() string { return "orders" }

// StampOrderTime 填充日期/星期/小时列
func (o *Order) StampOrderTime() {
	t := o.ProcessedAt.UTC()
	o.OrderDate = t.Format("2006-01-02")
	o.OrderWeekday = int(t.Weekday())
	o.OrderHour = t.Hour()
}

// OrderLineItem 订单行项目展开表，每次订单 upsert 时重建
type OrderLineItem struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID           string          `gorm:"size:64;index;not null" json:"order_id"`
	StoreID           int64           `gorm:"index;not null" json:"store_id"`
	ProductExternalID int64           `gorm:"index" json:"product_external_id"`
	Title             string          `gorm:"size:512" json:"title"`
	Quantity          int             `gorm:"not null;default:0" json:"quantity"`
	Price             decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"price"`
}

func (OrderLineItem) TableName() string { return "order_line_items" }
