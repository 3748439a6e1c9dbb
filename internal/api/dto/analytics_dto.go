package dto

import "github.com/shopspring/decimal"

// RangeQuery 日期区间，格式 YYYY-MM-DD，缺省为最近 30 天
type RangeQuery struct {
	From string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

type TopQuery struct {
	RangeQuery
	Limit int `form:"limit,default=10" binding:"min=1,max=100"`
}

type OverviewResponse struct {
	Revenue           decimal.Decimal `json:"revenue"`
	Orders            int64           `json:"orders"`
	Customers         int64           `json:"customers"`
	Products          int64           `json:"products"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

type DiscountCodeUsage struct {
	Code   string `json:"code"`
	Orders int    `json:"orders"`
}

type DiscountSummaryResponse struct {
	Orders           int64               `json:"orders"`
	DiscountedOrders int64               `json:"discounted_orders"`
	DiscountRate     float64             `json:"discount_rate"`
	TotalDiscount    decimal.Decimal     `json:"total_discount"`
	AverageDiscount  decimal.Decimal     `json:"average_discount"`
	TopCodes         []DiscountCodeUsage `json:"top_codes"`
}

type TopCustomer struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	OrdersCount int             `json:"orders_count"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
}

// HeatmapResponse Matrix[weekday][hour]，weekday 0 为周日，时间为 UTC
type HeatmapResponse struct {
	Matrix [7][24]int64 `json:"matrix"`
	Peak   int64        `json:"peak"`
}

type CustomerSplitResponse struct {
	From               string  `json:"from"`
	To                 string  `json:"to"`
	NewCustomers       int64   `json:"new_customers"`
	ReturningCustomers int64   `json:"returning_customers"`
	GuestOrders        int64   `json:"guest_orders"`
	ReturningRate      float64 `json:"returning_rate"`
}
