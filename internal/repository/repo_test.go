package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shop_insight_v1/internal/model"
)

// ==================== 辅助函数 ====================

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

func seedStore(t *testing.T, db *gorm.DB, tenantName, domain string) (*model.Tenant, *model.Store) {
	t.Helper()
	tenant := &model.Tenant{Name: tenantName}
	require.NoError(t, db.Create(tenant).Error)
	store := &model.Store{TenantID: tenant.ID, Name: domain, Domain: domain, AccessToken: "tok"}
	require.NoError(t, db.Create(store).Error)
	return tenant, store
}

func newOrder(storeID, externalID int64, customerID *string, total string, at time.Time) *model.Order {
	o := &model.Order{
		MirrorModel: model.MirrorModel{ID: model.MirrorID(storeID, externalID), StoreID: storeID, ExternalID: externalID},
		CustomerID:  customerID,
		TotalPrice:  decimal.RequireFromString(total),
		ProcessedAt: at,
	}
	o.StampOrderTime()
	return o
}

func strPtr(s string) *string { return &s }

// ==================== 镜像实体 upsert ====================

func TestProductUpsert_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, store := seedStore(t, db, "acme", "acme.myshopify.com")
	repo := NewProductRepository(db)

	id := model.MirrorID(store.ID, 101)
	p := &model.Product{
		MirrorModel: model.MirrorModel{ID: id, StoreID: store.ID, ExternalID: 101},
		Title:       "Mug",
		Tags:        datatypes.JSONSlice[string]{"kitchen"},
		Price:       decimal.RequireFromString("9.50"),
	}

	exists, err := repo.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Upsert(ctx, p))
	first, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	createdAt := first.CreatedAt

	// 同一外部 ID 再次写入：只刷新字段，不新增行
	again := &model.Product{
		MirrorModel: model.MirrorModel{ID: id, StoreID: store.ID, ExternalID: 101},
		Title:       "Big Mug",
		Price:       decimal.RequireFromString("12.00"),
	}
	require.NoError(t, repo.Upsert(ctx, again))

	n, err := repo.CountByStore(ctx, store.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Big Mug", got.Title)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("12")))
	assert.True(t, got.CreatedAt.Equal(createdAt), "created_at 不应被覆盖")
}

func TestCustomerUpsert_RefreshesMutableFields(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, store := seedStore(t, db, "acme", "acme.myshopify.com")
	repo := NewCustomerRepository(db)

	id := model.MirrorID(store.ID, 555)
	c := &model.Customer{
		MirrorModel: model.MirrorModel{ID: id, StoreID: store.ID, ExternalID: 555},
		Email:       "old@x.com",
		FirstName:   "Ann",
		TotalSpent:  decimal.RequireFromString("10"),
	}
	require.NoError(t, repo.Upsert(ctx, c))

	c2 := &model.Customer{
		MirrorModel: model.MirrorModel{ID: id, StoreID: store.ID, ExternalID: 555},
		Email:       "new@x.com",
		FirstName:   "Anna",
		OrdersCount: 3,
		TotalSpent:  decimal.RequireFromString("99.90"),
	}
	require.NoError(t, repo.Upsert(ctx, c2))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", got.Email)
	assert.Equal(t, "Anna", got.FirstName)
	assert.Equal(t, 3, got.OrdersCount)
	assert.True(t, got.TotalSpent.Equal(decimal.RequireFromString("99.9")))
}

func TestOrderUpsert_RebuildsLineItems(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, store := seedStore(t, db, "acme", "acme.myshopify.com")
	repo := NewOrderRepository(db)

	o := newOrder(store.ID, 9001, nil, "30.00", time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC))
	items := []model.OrderLineItem{
		{ProductExternalID: 1, Title: "A", Quantity: 1, Price: decimal.RequireFromString("10")},
		{ProductExternalID: 2, Title: "B", Quantity: 2, Price: decimal.RequireFromString("10")},
	}
	require.NoError(t, repo.Upsert(ctx, o, items))

	o2 := newOrder(store.ID, 9001, nil, "10.00", o.ProcessedAt)
	require.NoError(t, repo.Upsert(ctx, o2, []model.OrderLineItem{
		{ProductExternalID: 1, Title: "A", Quantity: 1, Price: decimal.RequireFromString("10")},
	}))

	got, err := repo.ListLineItems(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, store.ID, got[0].StoreID)

	saved, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-04", saved.OrderDate)
	assert.Equal(t, int(time.Tuesday), saved.OrderWeekday)
	assert.Equal(t, 15, saved.OrderHour)
}

// ==================== 级联删除 ====================

func TestStoreDelete_Cascades(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, store := seedStore(t, db, "acme", "acme.myshopify.com")
	_, other := seedStore(t, db, "globex", "globex.myshopify.com")

	cust := &model.Customer{MirrorModel: model.MirrorModel{ID: model.MirrorID(store.ID, 1), StoreID: store.ID, ExternalID: 1}}
	require.NoError(t, NewCustomerRepository(db).Upsert(ctx, cust))
	require.NoError(t, NewOrderRepository(db).Upsert(ctx,
		newOrder(store.ID, 1, strPtr(cust.ID), "5", time.Now()),
		[]model.OrderLineItem{{Title: "x", Quantity: 1}}))
	require.NoError(t, NewOrderRepository(db).Upsert(ctx, newOrder(other.ID, 1, nil, "5", time.Now()), nil))
	require.NoError(t, db.Create(&model.SyncJob{ID: uuid.NewString(), StoreID: store.ID, Entity: "all", Status: "succeeded"}).Error)

	require.NoError(t, NewStoreRepository(db).Delete(ctx, store.ID))

	for _, m := range []interface{}{&model.Order{}, &model.Customer{}, &model.OrderLineItem{}, &model.SyncJob{}} {
		var n int64
		db.Model(m).Where("store_id = ?", store.ID).Count(&n)
		assert.Zero(t, n, "%T 应被删除", m)
	}
	var remaining int64
	db.Model(&model.Order{}).Where("store_id = ?", other.ID).Count(&remaining)
	assert.Equal(t, int64(1), remaining, "其它店铺数据不受影响")
}

func TestTenantDelete_DetachesUsers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tenant, store := seedStore(t, db, "acme", "acme.myshopify.com")

	user := &model.User{Email: "Owner@Acme.com", PasswordHash: "x", TenantID: &tenant.ID}
	users := NewUserRepository(db)
	require.NoError(t, users.Create(ctx, user))

	require.NoError(t, NewTenantRepository(db).Delete(ctx, tenant.ID))

	got, err := users.GetByEmail(ctx, "owner@acme.com")
	require.NoError(t, err)
	assert.Nil(t, got.TenantID)

	_, err = NewStoreRepository(db).GetByID(ctx, store.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTenantCreateForUser(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)
	user := &model.User{Email: "a@b.com", PasswordHash: "x"}
	require.NoError(t, users.Create(ctx, user))

	tenant := &model.Tenant{Name: "new"}
	require.NoError(t, NewTenantRepository(db).CreateForUser(ctx, tenant, user.ID))

	got, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TenantID)
	assert.Equal(t, tenant.ID, *got.TenantID)
}

func TestStoreList_FilterAndPage(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tenant, _ := seedStore(t, db, "acme", "acme-1.myshopify.com")
	for i := 2; i <= 3; i++ {
		require.NoError(t, db.Create(&model.Store{TenantID: tenant.ID, Domain: fmt.Sprintf("acme-%d.myshopify.com", i), AccessToken: "t"}).Error)
	}
	seedStore(t, db, "globex", "globex.myshopify.com")

	repo := NewStoreRepository(db)
	stores, total, err := repo.List(ctx, StoreFilter{TenantID: tenant.ID, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, stores, 1)
	assert.Equal(t, "acme-3.myshopify.com", stores[0].Domain)

	_, err = repo.GetByTenantAndID(ctx, tenant.ID+100, stores[0].ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// ==================== 同步任务 ====================

func TestSyncJob_ActiveAndInterrupted(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewSyncJobRepository(db)

	none, err := repo.LatestByStore(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, none)

	old := &model.SyncJob{ID: uuid.NewString(), StoreID: 1, Entity: "all", Status: model.SyncStatusSucceeded, CreatedAt: time.Now().Add(-time.Hour)}
	running := &model.SyncJob{ID: uuid.NewString(), StoreID: 1, Entity: "orders", Status: model.SyncStatusRunning, CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, running))

	active, err := repo.ActiveByStore(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, running.ID, active.ID)

	n, err := repo.FailInterrupted(ctx, "interrupted by restart")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	latest, err := repo.LatestByStore(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusFailed, latest.Status)
	assert.NotNil(t, latest.FinishedAt)
}

func TestSyncJob_UpdateDoesNotRecreateDeletedJob(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, store := seedStore(t, db, "acme", "acme.myshopify.com")
	repo := NewSyncJobRepository(db)

	job := &model.SyncJob{ID: uuid.NewString(), StoreID: store.ID, Entity: "all", Status: model.SyncStatusRunning}
	require.NoError(t, repo.Create(ctx, job))

	job.Status = model.SyncStatusSucceeded
	job.Total = 3
	require.NoError(t, repo.Update(ctx, job))
	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusSucceeded, got.Status)
	assert.Equal(t, 3, got.Total)

	require.NoError(t, NewStoreRepository(db).Delete(ctx, store.ID))
	job.Status = model.SyncStatusFailed
	require.NoError(t, repo.Update(ctx, job))

	_, err = repo.GetByID(ctx, job.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestStoreDelete_ForeignKeyRejectsLateWrites(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	ctx := context.Background()
	_, store := seedStore(t, db, "acme", "acme.myshopify.com")
	stores := NewStoreRepository(db)
	require.NoError(t, stores.Delete(ctx, store.ID))

	p := &model.Product{MirrorModel: model.MirrorModel{ID: model.MirrorID(store.ID, 1), StoreID: store.ID, ExternalID: 1}, Title: "late"}
	assert.Error(t, NewProductRepository(db).Upsert(ctx, p))

	c := &model.Customer{MirrorModel: model.MirrorModel{ID: model.MirrorID(store.ID, 2), StoreID: store.ID, ExternalID: 2}}
	assert.Error(t, NewCustomerRepository(db).CreateIfMissing(ctx, c))

	assert.ErrorIs(t, stores.UpdateLastSyncedAt(ctx, store.ID, time.Now()), gorm.ErrRecordNotFound)
}

func TestCustomerCreateIfMissing_KeepsExistingRow(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, store := seedStore(t, db, "acme", "acme.myshopify.com")
	repo := NewCustomerRepository(db)

	id := model.MirrorID(store.ID, 7)
	require.NoError(t, repo.Upsert(ctx, &model.Customer{
		MirrorModel: model.MirrorModel{ID: id, StoreID: store.ID, ExternalID: 7},
		Email:       "ann@example.com",
		FirstName:   "Ann",
		OrdersCount: 2,
		TotalSpent:  decimal.RequireFromString("30"),
	}))
	require.NoError(t, repo.CreateIfMissing(ctx, &model.Customer{
		MirrorModel: model.MirrorModel{ID: id, StoreID: store.ID, ExternalID: 7},
	}))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", got.Email)
	assert.Equal(t, 2, got.OrdersCount)
	assert.True(t, got.TotalSpent.Equal(decimal.RequireFromString("30")))
}
