package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"shop_insight_v1/internal/model"
)

// ==================== 聚合结果 ====================

type OrderTotals struct {
	Orders  int64
	Revenue decimal.Decimal
}

type DailySales struct {
	Date    string          `json:"date"`
	Orders  int64           `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

type ProductSales struct {
	ProductExternalID int64           `json:"product_external_id"`
	Title             string          `json:"title"`
	Quantity          int64           `json:"quantity"`
	Revenue           decimal.Decimal `json:"revenue"`
}

type CustomerSplit struct {
	NewCustomers       int64 `json:"new_customers"`
	ReturningCustomers int64 `json:"returning_customers"`
	GuestOrders        int64 `json:"guest_orders"`
}

type HeatmapCell struct {
	Weekday int   `json:"weekday"`
	Hour    int   `json:"hour"`
	Orders  int64 `json:"orders"`
}

type DiscountTotals struct {
	Orders           int64
	DiscountedOrders int64
	TotalDiscount    decimal.Decimal
}

// DateRange 闭区间，格式 YYYY-MM-DD
type DateRange struct {
	From string
	To   string
}

// ==================== 接口定义 ====================

// AnalyticsRepository 数据库侧聚合查询
// 依赖订单写入时预计算的 order_date / order_weekday / order_hour 列
type AnalyticsRepository interface {
	OrderTotals(ctx context.Context, storeID int64, r *DateRange) (*OrderTotals, error)
	SalesByDay(ctx context.Context, storeID int64, r DateRange) ([]DailySales, error)
	TopProducts(ctx context.Context, storeID int64, r DateRange, limit int) ([]ProductSales, error)
	TopCustomers(ctx context.Context, storeID int64, limit int) ([]model.Customer, error)
	CustomerSplit(ctx context.Context, storeID int64, r DateRange) (*CustomerSplit, error)
	Heatmap(ctx context.Context, storeID int64, r DateRange) ([]HeatmapCell, error)
	DiscountTotals(ctx context.Context, storeID int64, r DateRange) (*DiscountTotals, error)
	DiscountCodes(ctx context.Context, storeID int64, r DateRange) ([]datatypes.JSONSlice[string], error)
}

type analyticsRepo struct {
	db *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepo{db: db}
}

func (r *analyticsRepo) orders(ctx context.Context, storeID int64, dr *DateRange) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Order{}).Where("store_id = ?", storeID)
	if dr != nil {
		q = q.Where("order_date BETWEEN ? AND ?", dr.From, dr.To)
	}
	return q
}

// OrderTotals r 为 nil 时统计全部订单
func (r *analyticsRepo) OrderTotals(ctx context.Context, storeID int64, dr *DateRange) (*OrderTotals, error) {
	var out OrderTotals
	err := r.orders(ctx, storeID, dr).
		Select("COUNT(*) AS orders, COALESCE(SUM(total_price), 0) AS revenue").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *analyticsRepo) SalesByDay(ctx context.Context, storeID int64, dr DateRange) ([]DailySales, error) {
	var rows []DailySales
	err := r.orders(ctx, storeID, &dr).
		Select("order_date AS date, COUNT(*) AS orders, COALESCE(SUM(total_price), 0) AS revenue").
		Group("order_date").
		Order("order_date ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *analyticsRepo) TopProducts(ctx context.Context, storeID int64, dr DateRange, limit int) ([]ProductSales, error) {
	var rows []ProductSales
	err := r.db.WithContext(ctx).
		Table("order_line_items AS li").
		Joins("JOIN orders AS o ON o.id = li.order_id").
		Where("li.store_id = ? AND o.order_date BETWEEN ? AND ?", storeID, dr.From, dr.To).
		Select("li.product_external_id AS product_external_id, MAX(li.title) AS title, " +
			"COALESCE(SUM(li.quantity), 0) AS quantity, COALESCE(SUM(li.price * li.quantity), 0) AS revenue").
		Group("li.product_external_id").
		Order("revenue DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *analyticsRepo) TopCustomers(ctx context.Context, storeID int64, limit int) ([]model.Customer, error) {
	var rows []model.Customer
	err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("total_spent DESC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// CustomerSplit 区间内下过单的客户中，首单落在区间内的为新客，否则为老客
func (r *analyticsRepo) CustomerSplit(ctx context.Context, storeID int64, dr DateRange) (*CustomerSplit, error) {
	var out CustomerSplit

	firstOrders := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Select("customer_id, MIN(order_date) AS first_date").
		Where("store_id = ? AND customer_id IS NOT NULL", storeID).
		Group("customer_id")

	activeCustomers := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Select("DISTINCT customer_id").
		Where("store_id = ? AND customer_id IS NOT NULL AND order_date BETWEEN ? AND ?", storeID, dr.From, dr.To)

	err := r.db.WithContext(ctx).
		Table("(?) AS f", firstOrders).
		Where("f.customer_id IN (?)", activeCustomers).
		Select("COALESCE(SUM(CASE WHEN f.first_date >= ? THEN 1 ELSE 0 END), 0) AS new_customers, "+
			"COALESCE(SUM(CASE WHEN f.first_date < ? THEN 1 ELSE 0 END), 0) AS returning_customers", dr.From, dr.From).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}

	if err := r.orders(ctx, storeID, &dr).Where("customer_id IS NULL").Count(&out.GuestOrders).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *analyticsRepo) Heatmap(ctx context.Context, storeID int64, dr DateRange) ([]HeatmapCell, error) {
	var rows []HeatmapCell
	err := r.orders(ctx, storeID, &dr).
		Select("order_weekday AS weekday, order_hour AS hour, COUNT(*) AS orders").
		Group("order_weekday, order_hour").
		Order("order_weekday ASC, order_hour ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *analyticsRepo) DiscountTotals(ctx context.Context, storeID int64, dr DateRange) (*DiscountTotals, error) {
	var out DiscountTotals
	err := r.orders(ctx, storeID, &dr).
		Select("COUNT(*) AS orders, " +
			"COALESCE(SUM(CASE WHEN total_discounts > 0 THEN 1 ELSE 0 END), 0) AS discounted_orders, " +
			"COALESCE(SUM(total_discounts), 0) AS total_discount").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DiscountCodes 只取有折扣码的订单的 discount_codes 列
func (r *analyticsRepo) DiscountCodes(ctx context.Context, storeID int64, dr DateRange) ([]datatypes.JSONSlice[string], error) {
	var codes []datatypes.JSONSlice[string]
	err := r.orders(ctx, storeID, &dr).
		Where("total_discounts > 0").
		Pluck("discount_codes", &codes).Error
	return codes, err
}
