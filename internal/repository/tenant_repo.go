package repository

import (
	"context"

	"gorm.io/gorm"

	"shop_insight_v1/internal/model"
)

// TenantRepository 租户仓储接口
type TenantRepository interface {
	Create(ctx context.Context, tenant *model.Tenant) error
	// CreateForUser 创建租户并把用户挂到该租户下（同一事务）
	CreateForUser(ctx context.Context, tenant *model.Tenant, userID int64) error
	GetByID(ctx context.Context, id int64) (*model.Tenant, error)
	GetByName(ctx context.Context, name string) (*model.Tenant, error)
	Update(ctx context.Context, tenant *model.Tenant) error
	// Delete 级联删除店铺数据并解除用户关联
	Delete(ctx context.Context, id int64) error
}

type tenantRepo struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepo{db: db}
}

func (r *tenantRepo) Create(ctx context.Context, tenant *model.Tenant) error {
	return r.db.WithContext(ctx).Create(tenant).Error
}

func (r *tenantRepo) CreateForUser(ctx context.Context, tenant *model.Tenant, userID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tenant).Error; err != nil {
			return err
		}
		return tx.Model(&model.User{}).
			Where("id = ?", userID).
			Update("tenant_id", tenant.ID).Error
	})
}

func (r *tenantRepo) GetByID(ctx context.Context, id int64) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := r.db.WithContext(ctx).First(&tenant, id).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepo) GetByName(ctx context.Context, name string) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&tenant).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepo) Update(ctx context.Context, tenant *model.Tenant) error {
	return r.db.WithContext(ctx).Save(tenant).Error
}

func (r *tenantRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var storeIDs []int64
		if err := tx.Model(&model.Store{}).Where("tenant_id = ?", id).Pluck("id", &storeIDs).Error; err != nil {
			return err
		}
		if err := deleteStores(tx, storeIDs); err != nil {
			return err
		}
		if err := tx.Model(&model.User{}).
			Where("tenant_id = ?", id).
			Update("tenant_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Tenant{}, id).Error
	})
}
