package repository

import (
	"context"

	"gorm.io/gorm"

	"shop_insight_v1/internal/model"
)

// OrderRepository 订单镜像仓储
type OrderRepository interface {
	Exists(ctx context.Context, id string) (bool, error)
	// Upsert 写入订单并重建其行项目展开表（同一事务）
	Upsert(ctx context.Context, order *model.Order, items []model.OrderLineItem) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	CountByStore(ctx context.Context, storeID int64) (int64, error)
	ListLineItems(ctx context.Context, orderID string) ([]model.OrderLineItem, error)
}

var orderUpdateColumns = []string{
	"customer_id", "name", "email", "financial_status", "fulfillment_status", "currency",
	"subtotal_price", "total_price", "total_tax", "total_discounts",
	"discount_codes", "line_items", "processed_at", "order_date", "order_weekday", "order_hour",
	"external_created_at", "external_updated_at",
}

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) Exists(ctx context.Context, id string) (bool, error) {
	return existsByID(ctx, r.db, &model.Order{}, id)
}

func (r *orderRepo) Upsert(ctx context.Context, order *model.Order, items []model.OrderLineItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertByID(ctx, tx, order, orderUpdateColumns); err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", order.ID).Delete(&model.OrderLineItem{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].ID = 0
			items[i].OrderID = order.ID
			items[i].StoreID = order.StoreID
		}
		return tx.Create(&items).Error
	})
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) CountByStore(ctx context.Context, storeID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).Where("store_id = ?", storeID).Count(&n).Error
	return n, err
}

func (r *orderRepo) ListLineItems(ctx context.Context, orderID string) ([]model.OrderLineItem, error) {
	var items []model.OrderLineItem
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&items).Error
	return items, err
}
