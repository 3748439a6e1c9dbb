package repository

import (
	"context"

	"gorm.io/gorm"

	"shop_insight_v1/internal/model"
)

// ProductRepository 商品镜像仓储
type ProductRepository interface {
	Exists(ctx context.Context, id string) (bool, error)
	Upsert(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id string) (*model.Product, error)
	CountByStore(ctx context.Context, storeID int64) (int64, error)
}

var productUpdateColumns = []string{
	"title", "vendor", "product_type", "status", "handle", "tags",
	"price", "images", "variants", "external_created_at", "external_updated_at",
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) Exists(ctx context.Context, id string) (bool, error) {
	return existsByID(ctx, r.db, &model.Product{}, id)
}

func (r *productRepo) Upsert(ctx context.Context, product *model.Product) error {
	return upsertByID(ctx, r.db, product, productUpdateColumns)
}

func (r *productRepo) GetByID(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) CountByStore(ctx context.Context, storeID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Product{}).Where("store_id = ?", storeID).Count(&n).Error
	return n, err
}
