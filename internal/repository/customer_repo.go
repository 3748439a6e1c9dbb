package repository

import (
	"context"

	"gorm.io/gorm"

	"shop_insight_v1/internal/model"
)

// CustomerRepository 客户镜像仓储
type CustomerRepository interface {
	Exists(ctx context.Context, id string) (bool, error)
	// Upsert 冲突时刷新全部可变字段（最后一次同步为准）
	Upsert(ctx context.Context, customer *model.Customer) error
	// CreateIfMissing 订单内嵌的客户字段不全，只补建不覆盖
	CreateIfMissing(ctx context.Context, customer *model.Customer) error
	GetByID(ctx context.Context, id string) (*model.Customer, error)
	CountByStore(ctx context.Context, storeID int64) (int64, error)
}

var customerUpdateColumns = []string{
	"email", "first_name", "last_name", "phone", "orders_count", "total_spent",
	"external_created_at", "external_updated_at",
}

type customerRepo struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepo{db: db}
}

func (r *customerRepo) Exists(ctx context.Context, id string) (bool, error) {
	return existsByID(ctx, r.db, &model.Customer{}, id)
}

func (r *customerRepo) Upsert(ctx context.Context, customer *model.Customer) error {
	return upsertByID(ctx, r.db, customer, customerUpdateColumns)
}

func (r *customerRepo) CreateIfMissing(ctx context.Context, customer *model.Customer) error {
	return insertIfMissing(ctx, r.db, customer)
}

func (r *customerRepo) GetByID(ctx context.Context, id string) (*model.Customer, error) {
	var c model.Customer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *customerRepo) CountByStore(ctx context.Context, storeID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Customer{}).Where("store_id = ?", storeID).Count(&n).Error
	return n, err
}
