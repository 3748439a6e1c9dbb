package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"shop_insight_v1/internal/model"
)

// ==================== 接口定义 ====================

// StoreRepository 店铺仓储接口
type StoreRepository interface {
	Create(ctx context.Context, store *model.Store) error
	GetByID(ctx context.Context, id int64) (*model.Store, error)
	GetByTenantAndID(ctx context.Context, tenantID, id int64) (*model.Store, error)
	GetByDomain(ctx context.Context, domain string) (*model.Store, error)
	Update(ctx context.Context, store *model.Store) error
	UpdateLastSyncedAt(ctx context.Context, id int64, at time.Time) error
	// Delete 在一个事务内删除店铺及其全部镜像数据
	Delete(ctx context.Context, id int64) error

	List(ctx context.Context, filter StoreFilter) ([]model.Store, int64, error)
	ListAll(ctx context.Context) ([]model.Store, error)
}

// ==================== 过滤条件 ====================

// StoreFilter 店铺过滤条件
type StoreFilter struct {
	TenantID int64 // 0 表示不筛选
	Keyword  string
	Page     int
	PageSize int
}

// ==================== 仓储实现 ====================

type storeRepo struct {
	db *gorm.DB
}

// NewStoreRepository 创建店铺仓储
func NewStoreRepository(db *gorm.DB) StoreRepository {
	return &storeRepo{db: db}
}

func (r *storeRepo) Create(ctx context.Context, store *model.Store) error {
	return r.db.WithContext(ctx).Create(store).Error
}

func (r *storeRepo) GetByID(ctx context.Context, id int64) (*model.Store, error) {
	var store model.Store
	if err := r.db.WithContext(ctx).First(&store, id).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *storeRepo) GetByTenantAndID(ctx context.Context, tenantID, id int64) (*model.Store, error) {
	var store model.Store
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *storeRepo) GetByDomain(ctx context.Context, domain string) (*model.Store, error) {
	var store model.Store
	if err := r.db.WithContext(ctx).Where("domain = ?", domain).First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *storeRepo) Update(ctx context.Context, store *model.Store) error {
	return r.db.WithContext(ctx).Save(store).Error
}

// UpdateLastSyncedAt 店铺已被删除时返回 gorm.ErrRecordNotFound
func (r *storeRepo) UpdateLastSyncedAt(ctx context.Context, id int64, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.Store{}).
		Where("id = ?", id).
		Update("last_synced_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *storeRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteStores(tx, []int64{id})
	})
}

func (r *storeRepo) List(ctx context.Context, filter StoreFilter) ([]model.Store, int64, error) {
	var stores []model.Store
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Store{})
	if filter.TenantID > 0 {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.Keyword != "" {
		like := "%" + filter.Keyword + "%"
		query = query.Where("name LIKE ? OR domain LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	err := query.Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&stores).Error
	return stores, total, err
}

func (r *storeRepo) ListAll(ctx context.Context) ([]model.Store, error) {
	var stores []model.Store
	err := r.db.WithContext(ctx).Order("id ASC").Find(&stores).Error
	return stores, err
}

// ==================== 级联删除 ====================

// deleteStores 删除店铺及镜像数据，调用方负责事务
// 顺序：行项目 -> 订单 -> 客户 -> 商品 -> 同步记录 -> 店铺
func deleteStores(tx *gorm.DB, storeIDs []int64) error {
	if len(storeIDs) == 0 {
		return nil
	}
	steps := []interface{}{
		&model.OrderLineItem{},
		&model.Order{},
		&model.Customer{},
		&model.Product{},
		&model.SyncJob{},
	}
	for _, m := range steps {
		if err := tx.Where("store_id IN ?", storeIDs).Delete(m).Error; err != nil {
			return err
		}
	}
	return tx.Where("id IN ?", storeIDs).Delete(&model.Store{}).Error
}

func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 200 {
		pageSize = 200
	}
	return page, pageSize
}
