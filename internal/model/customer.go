package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer 店铺客户镜像
// OrdersCount / TotalSpent 来自平台，本地不重新计算
type Customer struct {
	MirrorModel
	Email       string          `gorm:"size:255;index" json:"email"`
	FirstName   string          `gorm:"size:128" json:"first_name"`
	LastName    string          `gorm:"size:128" json:"last_name"`
	Phone       string          `gorm:"size:64" json:"phone"`
	OrdersCount int             `gorm:"not null;default:0" json:"orders_count"`
	TotalSpent  decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_spent"`

	ExternalCreatedAt time.Time `json:"external_created_at"`
	ExternalUpdatedAt time.Time `json:"external_updated_at"`
}

func (Customer) TableName() string { return "customers" }

// FullName 拼接姓名
func (c Customer) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}
