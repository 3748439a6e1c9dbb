package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gorm.io/gorm"

	"shop_insight_v1/internal/model"
	"shop_insight_v1/internal/repository"
	"shop_insight_v1/internal/service/mocks"
	"shop_insight_v1/pkg/shopify"
)

// ==================== 假平台 ====================

// fakeShop 按 since_id 分页返回内存中的数据
type fakeShop struct {
	mu        sync.Mutex
	products  []shopify.Product
	customers []shopify.Customer
	orders    []shopify.Order

	productCalls []int // 每次返回的条数，失败记 -1
	failProducts int   // 接下来失败的次数，<0 表示一直失败
}

var errPlatformDown = errors.New("platform unavailable")

func (f *fakeShop) ListProducts(_ context.Context, _ shopify.Credentials, sinceID int64, limit int) ([]shopify.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failProducts != 0 {
		if f.failProducts > 0 {
			f.failProducts--
		}
		f.productCalls = append(f.productCalls, -1)
		return nil, errPlatformDown
	}
	page := pageAfter(f.products, sinceID, limit, func(p shopify.Product) int64 { return p.ID })
	f.productCalls = append(f.productCalls, len(page))
	return page, nil
}

func (f *fakeShop) ListCustomers(_ context.Context, _ shopify.Credentials, sinceID int64, limit int) ([]shopify.Customer, error) {
	return pageAfter(f.customers, sinceID, limit, func(c shopify.Customer) int64 { return c.ID }), nil
}

func (f *fakeShop) ListOrders(_ context.Context, _ shopify.Credentials, sinceID int64, limit int) ([]shopify.Order, error) {
	return pageAfter(f.orders, sinceID, limit, func(o shopify.Order) int64 { return o.ID }), nil
}

func pageAfter[T any](all []T, sinceID int64, limit int, idOf func(T) int64) []T {
	sorted := append([]T(nil), all...)
	sort.Slice(sorted, func(i, j int) bool { return idOf(sorted[i]) < idOf(sorted[j]) })
	var out []T
	for _, it := range sorted {
		if idOf(it) > sinceID {
			out = append(out, it)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

func makeProducts(n int) []shopify.Product {
	out := make([]shopify.Product, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, shopify.Product{
			ID:       int64(1000 + i),
			Title:    "Product",
			Tags:     "a, b",
			Variants: []shopify.Variant{{ID: int64(i), Price: "12.50"}},
		})
	}
	return out
}

// ==================== 测试辅助 ====================

type syncFixture struct {
	db    *gorm.DB
	store *model.Store
	svc   *SyncService
}

func newSyncFixture(t *testing.T, fetcher ShopifyFetcher) *syncFixture {
	t.Helper()
	db := setupServiceDB(t)
	store := seedTenantStore(t, db, "sync.myshopify.com")
	svc := NewSyncService(
		fetcher,
		repository.NewStoreRepository(db),
		repository.NewProductRepository(db),
		repository.NewCustomerRepository(db),
		repository.NewOrderRepository(db),
		SyncConfig{PageSize: 50, BatchSize: 10, MaxPageFailures: 3},
		nopLogger(),
	)
	return &syncFixture{db: db, store: store, svc: svc}
}

func ts(s string) *time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return &t
}

// ==================== 分页 ====================

func TestSyncProducts_PaginatesUntilShortPage(t *testing.T) {
	shop := &fakeShop{products: makeProducts(120)}
	fx := newSyncFixture(t, shop)

	stats := fx.svc.SyncProducts(context.Background(), fx.store)

	assert.Equal(t, []int{50, 50, 20}, shop.productCalls)
	assert.Equal(t, EntityStats{Total: 120, Created: 120, Pages: 3}, stats)

	var count int64
	fx.db.Model(&model.Product{}).Where("store_id = ?", fx.store.ID).Count(&count)
	assert.Equal(t, int64(120), count)
}

func TestSyncProducts_ExactMultipleStopsOnEmptyPage(t *testing.T) {
	shop := &fakeShop{products: makeProducts(100)}
	fx := newSyncFixture(t, shop)

	stats := fx.svc.SyncProducts(context.Background(), fx.store)

	assert.Equal(t, []int{50, 50, 0}, shop.productCalls)
	assert.Equal(t, 100, stats.Created)
}

func TestSyncProducts_AbortsAfterConsecutiveFailures(t *testing.T) {
	shop := &fakeShop{products: makeProducts(5), failProducts: -1}
	fx := newSyncFixture(t, shop)

	stats := fx.svc.SyncProducts(context.Background(), fx.store)

	// 第 4 次连续失败超过上限 3
	assert.Len(t, shop.productCalls, 4)
	assert.True(t, stats.Aborted)
	assert.Zero(t, stats.Total)

	result := &SyncResult{Combined: stats}
	assert.Equal(t, model.SyncStatusFailed, result.Status())
}

func TestSyncProducts_RetriesSameCursorAfterFailure(t *testing.T) {
	shop := &fakeShop{products: makeProducts(60), failProducts: 3}
	fx := newSyncFixture(t, shop)

	stats := fx.svc.SyncProducts(context.Background(), fx.store)

	assert.Equal(t, []int{-1, -1, -1, 50, 10}, shop.productCalls)
	assert.False(t, stats.Aborted)
	assert.Equal(t, 60, stats.Created)
}

// ==================== 全量同步 ====================

func fullShop() *fakeShop {
	return &fakeShop{
		products: makeProducts(3),
		customers: []shopify.Customer{
			{ID: 1, Email: "Ann@Example.com", FirstName: "Ann", TotalSpent: "30.00", OrdersCount: 2},
			{ID: 2, Email: "bob@example.com", FirstName: "Bob"},
		},
		orders: []shopify.Order{
			{ID: 10, TotalPrice: "10.00", Customer: &shopify.Customer{ID: 1}, ProcessedAt: ts("2024-03-01T10:00:00Z")},
			{ID: 11, TotalPrice: "20.00", Customer: &shopify.Customer{ID: 1}, ProcessedAt: ts("2024-03-02T11:00:00Z")},
			{ID: 12, TotalPrice: "5.00", Customer: &shopify.Customer{ID: 2}, ProcessedAt: ts("2024-03-02T12:00:00Z")},
			{ID: 13, TotalPrice: "7.00", ProcessedAt: ts("2024-03-03T13:00:00Z")},
		},
	}
}

func TestSyncStore_FreshThenRerun(t *testing.T) {
	fx := newSyncFixture(t, fullShop())
	ctx := context.Background()

	first, err := fx.svc.SyncStore(ctx, fx.store, model.SyncEntityAll)
	require.NoError(t, err)
	assert.Equal(t, 9, first.Combined.Total)
	assert.Equal(t, 9, first.Combined.Created)
	assert.Zero(t, first.Combined.Updated)
	assert.Zero(t, first.Combined.Errors)
	assert.Equal(t, model.SyncStatusSucceeded, first.Status())

	second, err := fx.svc.SyncStore(ctx, fx.store, model.SyncEntityAll)
	require.NoError(t, err)
	assert.Equal(t, 9, second.Combined.Total)
	assert.Zero(t, second.Combined.Created)
	assert.Equal(t, 9, second.Combined.Updated)
	assert.Equal(t, 3, second.Products.Updated)
	assert.Equal(t, 2, second.Customers.Updated)
	assert.Equal(t, 4, second.Orders.Updated)
}

func TestSyncStore_EmbeddedCustomerKeepsSyncedFields(t *testing.T) {
	fx := newSyncFixture(t, fullShop())

	_, err := fx.svc.SyncStore(context.Background(), fx.store, model.SyncEntityAll)
	require.NoError(t, err)

	var ann model.Customer
	require.NoError(t, fx.db.First(&ann, "id = ?", model.MirrorID(fx.store.ID, 1)).Error)
	assert.Equal(t, "ann@example.com", ann.Email)
	assert.Equal(t, "Ann", ann.FirstName)
	assert.Equal(t, "30", ann.TotalSpent.String())
	assert.Equal(t, 2, ann.OrdersCount)
}

func TestSyncStore_SingleEntity(t *testing.T) {
	fx := newSyncFixture(t, fullShop())

	result, err := fx.svc.SyncStore(context.Background(), fx.store, model.SyncEntityCustomers)
	require.NoError(t, err)
	assert.Nil(t, result.Products)
	assert.Nil(t, result.Orders)
	require.NotNil(t, result.Customers)
	assert.Equal(t, 2, result.Combined.Created)
}

func TestSyncStore_RejectsUnknownEntity(t *testing.T) {
	fx := newSyncFixture(t, fullShop())
	_, err := fx.svc.SyncStore(context.Background(), fx.store, "variants")
	assert.Error(t, err)
}

func TestSyncOrders_CreatesReferencedCustomer(t *testing.T) {
	shop := &fakeShop{orders: []shopify.Order{{
		ID:         77,
		TotalPrice: "42.00",
		Customer:   &shopify.Customer{ID: 555, Email: "new@example.com"},
		LineItems:  []shopify.LineItem{{ID: 1, Title: "Mug", Quantity: 2, Price: "21.00"}},
	}}}
	fx := newSyncFixture(t, shop)

	stats := fx.svc.SyncOrders(context.Background(), fx.store)
	assert.Equal(t, 1, stats.Created)

	customerID := model.MirrorID(fx.store.ID, 555)
	var customer model.Customer
	require.NoError(t, fx.db.First(&customer, "id = ?", customerID).Error)
	assert.Equal(t, "new@example.com", customer.Email)

	var order model.Order
	require.NoError(t, fx.db.First(&order, "id = ?", model.MirrorID(fx.store.ID, 77)).Error)
	require.NotNil(t, order.CustomerID)
	assert.Equal(t, customerID, *order.CustomerID)

	// 内嵌客户不计入统计
	assert.Equal(t, 1, stats.Total)
}

func TestSyncOrders_UpdateRefreshesMutableFields(t *testing.T) {
	shop := &fakeShop{customers: []shopify.Customer{{ID: 9, Email: "old@example.com", TotalSpent: "1.00"}}}
	fx := newSyncFixture(t, shop)
	ctx := context.Background()

	fx.svc.SyncCustomers(ctx, fx.store)
	shop.customers[0].Email = "fresh@example.com"
	shop.customers[0].TotalSpent = "99.00"
	stats := fx.svc.SyncCustomers(ctx, fx.store)
	assert.Equal(t, 1, stats.Updated)

	var customer model.Customer
	require.NoError(t, fx.db.First(&customer, "id = ?", model.MirrorID(fx.store.ID, 9)).Error)
	assert.Equal(t, "fresh@example.com", customer.Email)
	assert.Equal(t, "99", customer.TotalSpent.String())
	assert.Equal(t, int64(9), customer.ExternalID)
}

func TestSyncProducts_ItemErrorIsCounted(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockShopifyFetcher(ctrl)
	fx := newSyncFixture(t, fetcher)

	page := append(makeProducts(2), shopify.Product{Title: "no id"})
	fetcher.EXPECT().
		ListProducts(gomock.Any(), gomock.Any(), int64(0), 50).
		Return(page, nil)

	result, err := fx.svc.SyncStore(context.Background(), fx.store, model.SyncEntityProducts)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Combined.Total)
	assert.Equal(t, 2, result.Combined.Created)
	assert.Equal(t, 1, result.Combined.Errors)
	assert.Equal(t, model.SyncStatusPartial, result.Status())
}

// ==================== last_synced_at ====================

func TestSyncStore_SetsLastSyncedAt(t *testing.T) {
	fx := newSyncFixture(t, fullShop())
	fixed := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	fx.svc.now = func() time.Time { return fixed }

	_, err := fx.svc.SyncStore(context.Background(), fx.store, model.SyncEntityAll)
	require.NoError(t, err)

	var store model.Store
	require.NoError(t, fx.db.First(&store, fx.store.ID).Error)
	require.NotNil(t, store.LastSyncedAt)
	assert.True(t, fixed.Equal(store.LastSyncedAt.UTC()))
}

func TestSyncStore_CancelledDoesNotMarkSynced(t *testing.T) {
	fx := newSyncFixture(t, fullShop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := fx.svc.SyncStore(ctx, fx.store, model.SyncEntityAll)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, result.Combined.Aborted)

	var store model.Store
	require.NoError(t, fx.db.First(&store, fx.store.ID).Error)
	assert.Nil(t, store.LastSyncedAt)
}

// ==================== 同步中删除店铺 ====================

// deletingShop 第一次拉客户时删除店铺
type deletingShop struct {
	*fakeShop
	once     sync.Once
	onDelete func()
}

func (d *deletingShop) ListCustomers(ctx context.Context, cred shopify.Credentials, sinceID int64, limit int) ([]shopify.Customer, error) {
	d.once.Do(d.onDelete)
	return d.fakeShop.ListCustomers(ctx, cred, sinceID, limit)
}

func TestSyncStore_StoreDeletedMidSyncLeavesNoOrphans(t *testing.T) {
	shop := &deletingShop{fakeShop: fullShop()}
	fx := newSyncFixture(t, shop)
	require.NoError(t, fx.db.Exec("PRAGMA foreign_keys = ON").Error)
	ctx := context.Background()
	shop.onDelete = func() {
		require.NoError(t, repository.NewStoreRepository(fx.db).Delete(ctx, fx.store.ID))
	}

	result, err := fx.svc.SyncStore(ctx, fx.store, model.SyncEntityAll)
	assert.ErrorIs(t, err, ErrStoreNotFound)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.Customers.Errors)
	assert.Equal(t, 4, result.Orders.Errors)

	for _, m := range []interface{}{&model.Product{}, &model.Customer{}, &model.Order{}, &model.OrderLineItem{}} {
		var n int64
		require.NoError(t, fx.db.Model(m).Where("store_id = ?", fx.store.ID).Count(&n).Error)
		assert.Zero(t, n, "%T 不应残留", m)
	}
}

// ==================== gomock ====================

func TestSyncProducts_WithMockFetcher(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockShopifyFetcher(ctrl)
	fx := newSyncFixture(t, fetcher)

	cred := shopify.Credentials{Domain: fx.store.Domain, AccessToken: fx.store.AccessToken}
	fetcher.EXPECT().
		ListProducts(gomock.Any(), cred, int64(0), 50).
		Return(makeProducts(2), nil).
		Times(1)

	stats := fx.svc.SyncProducts(context.Background(), fx.store)
	assert.Equal(t, 2, stats.Created)
	assert.Equal(t, 1, stats.Pages)
}
