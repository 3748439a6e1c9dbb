package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shop_insight_v1/internal/model"
	"shop_insight_v1/internal/repository"
	"shop_insight_v1/pkg/metrics"
	"shop_insight_v1/pkg/shopify"
)

//go:generate mockgen -destination=mocks/mock_fetcher.go -package=mocks shop_insight_v1/internal/service ShopifyFetcher

// ==================== 依赖接口 ====================

// ShopifyFetcher 平台分页读取
type ShopifyFetcher interface {
	ListProducts(ctx context.Context, cred shopify.Credentials, sinceID int64, limit int) ([]shopify.Product, error)
	ListCustomers(ctx context.Context, cred shopify.Credentials, sinceID int64, limit int) ([]shopify.Customer, error)
	ListOrders(ctx context.Context, cred shopify.Credentials, sinceID int64, limit int) ([]shopify.Order, error)
}

// ==================== 统计 ====================

// EntityStats 单个实体流的同步统计
type EntityStats struct {
	Total   int  `json:"total"`
	Created int  `json:"created"`
	Updated int  `json:"updated"`
	Errors  int  `json:"errors"`
	Pages   int  `json:"pages"`
	Aborted bool `json:"aborted"` // 连续分页失败超过上限
}

func (s *EntityStats) add(o EntityStats) {
	s.Total += o.Total
	s.Created += o.Created
	s.Updated += o.Updated
	s.Errors += o.Errors
	s.Pages += o.Pages
	s.Aborted = s.Aborted || o.Aborted
}

// SyncResult 一次同步（一个或多个实体流）的结果
type SyncResult struct {
	Products  *EntityStats `json:"products,omitempty"`
	Customers *EntityStats `json:"customers,omitempty"`
	Orders    *EntityStats `json:"orders,omitempty"`
	Combined  EntityStats  `json:"combined"`
}

// Status 终态：无错误 succeeded；有错误但写入过数据 partial；否则 failed
func (r *SyncResult) Status() string {
	c := r.Combined
	switch {
	case c.Errors == 0 && !c.Aborted:
		return model.SyncStatusSucceeded
	case c.Created+c.Updated > 0:
		return model.SyncStatusPartial
	default:
		return model.SyncStatusFailed
	}
}

// ==================== SyncService ====================

// SyncConfig 同步参数
type SyncConfig struct {
	PageSize        int
	BatchSize       int
	MaxPageFailures int
}

func (c *SyncConfig) normalize() {
	if c.PageSize <= 0 {
		c.PageSize = 50
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.MaxPageFailures <= 0 {
		c.MaxPageFailures = 3
	}
}

// SyncService 拉取平台数据并 upsert 到本地
type SyncService struct {
	fetcher      ShopifyFetcher
	storeRepo    repository.StoreRepository
	productRepo  repository.ProductRepository
	customerRepo repository.CustomerRepository
	orderRepo    repository.OrderRepository
	cfg          SyncConfig
	logger       *zap.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

func NewSyncService(
	fetcher ShopifyFetcher,
	storeRepo repository.StoreRepository,
	productRepo repository.ProductRepository,
	customerRepo repository.CustomerRepository,
	orderRepo repository.OrderRepository,
	cfg SyncConfig,
	logger *zap.Logger,
) *SyncService {
	cfg.normalize()
	return &SyncService{
		fetcher:      fetcher,
		storeRepo:    storeRepo,
		productRepo:  productRepo,
		customerRepo: customerRepo,
		orderRepo:    orderRepo,
		cfg:          cfg,
		logger:       logger.Named("sync"),
		tracer:       otel.Tracer("shop_insight_v1/sync"),
		now:          time.Now,
	}
}

// ValidEntity 是否为合法的同步范围
func ValidEntity(entity string) bool {
	switch entity {
	case model.SyncEntityAll, model.SyncEntityProducts, model.SyncEntityCustomers, model.SyncEntityOrders:
		return true
	}
	return false
}

// SyncStore 按 商品 -> 客户 -> 订单 顺序同步
// 单个实体流失败不影响其它流；完成后才写入 last_synced_at，ctx 取消视为未完成
func (s *SyncService) SyncStore(ctx context.Context, store *model.Store, entity string) (*SyncResult, error) {
	if !ValidEntity(entity) {
		return nil, fmt.Errorf("unknown sync entity %q", entity)
	}

	ctx, span := s.tracer.Start(ctx, "sync.store", trace.WithAttributes(
		attribute.Int64("store.id", store.ID),
		attribute.String("sync.entity", entity),
	))
	defer span.End()

	result := &SyncResult{}
	run := func(name string, fn func(context.Context, *model.Store) EntityStats) *EntityStats {
		if entity != model.SyncEntityAll && entity != name {
			return nil
		}
		stats := fn(ctx, store)
		result.Combined.add(stats)
		return &stats
	}

	result.Products = run(model.SyncEntityProducts, s.SyncProducts)
	result.Customers = run(model.SyncEntityCustomers, s.SyncCustomers)
	result.Orders = run(model.SyncEntityOrders, s.SyncOrders)

	if err := ctx.Err(); err != nil {
		return result, err
	}

	// 用独立 ctx 写入，避免父 ctx 恰好到期导致时间戳丢失
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.storeRepo.UpdateLastSyncedAt(writeCtx, store.ID, s.now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("store deleted during sync", zap.Int64("store_id", store.ID))
			return result, ErrStoreNotFound
		}
		s.logger.Error("update last_synced_at failed", zap.Int64("store_id", store.ID), zap.Error(err))
		return result, fmt.Errorf("更新同步时间失败: %w", err)
	}

	span.SetAttributes(
		attribute.Int("sync.total", result.Combined.Total),
		attribute.Int("sync.errors", result.Combined.Errors),
	)
	return result, nil
}

// SyncProducts 同步商品
func (s *SyncService) SyncProducts(ctx context.Context, store *model.Store) EntityStats {
	cred := credentialsOf(store)
	return paginate(ctx, s, store, model.SyncEntityProducts,
		func(ctx context.Context, sinceID int64) ([]shopify.Product, error) {
			return s.fetcher.ListProducts(ctx, cred, sinceID, s.cfg.PageSize)
		},
		func(p shopify.Product) int64 { return p.ID },
		func(ctx context.Context, p shopify.Product) (bool, error) {
			m, err := mapProduct(store.ID, p, s.now())
			if err != nil {
				return false, err
			}
			exists, err := s.productRepo.Exists(ctx, m.ID)
			if err != nil {
				return false, err
			}
			return !exists, s.productRepo.Upsert(ctx, m)
		},
	)
}

// SyncCustomers 同步客户
func (s *SyncService) SyncCustomers(ctx context.Context, store *model.Store) EntityStats {
	cred := credentialsOf(store)
	return paginate(ctx, s, store, model.SyncEntityCustomers,
		func(ctx context.Context, sinceID int64) ([]shopify.Customer, error) {
			return s.fetcher.ListCustomers(ctx, cred, sinceID, s.cfg.PageSize)
		},
		func(c shopify.Customer) int64 { return c.ID },
		func(ctx context.Context, c shopify.Customer) (bool, error) {
			return s.upsertCustomer(ctx, store.ID, c)
		},
	)
}

// SyncOrders 同步订单；订单内嵌的客户不存在时先补建，不计入统计
func (s *SyncService) SyncOrders(ctx context.Context, store *model.Store) EntityStats {
	cred := credentialsOf(store)
	return paginate(ctx, s, store, model.SyncEntityOrders,
		func(ctx context.Context, sinceID int64) ([]shopify.Order, error) {
			return s.fetcher.ListOrders(ctx, cred, sinceID, s.cfg.PageSize)
		},
		func(o shopify.Order) int64 { return o.ID },
		func(ctx context.Context, o shopify.Order) (bool, error) {
			m, items, err := mapOrder(store.ID, o, s.now())
			if err != nil {
				return false, err
			}
			if m.CustomerID != nil {
				if err := s.ensureCustomer(ctx, store.ID, *o.Customer); err != nil {
					return false, fmt.Errorf("create order customer: %w", err)
				}
			}
			exists, err := s.orderRepo.Exists(ctx, m.ID)
			if err != nil {
				return false, err
			}
			return !exists, s.orderRepo.Upsert(ctx, m, items)
		},
	)
}

func (s *SyncService) upsertCustomer(ctx context.Context, storeID int64, c shopify.Customer) (bool, error) {
	m, err := mapCustomer(storeID, c, s.now())
	if err != nil {
		return false, err
	}
	exists, err := s.customerRepo.Exists(ctx, m.ID)
	if err != nil {
		return false, err
	}
	return !exists, s.customerRepo.Upsert(ctx, m)
}

// ensureCustomer 内嵌客户常只有 id/email，已存在的客户以客户流同步的数据为准
func (s *SyncService) ensureCustomer(ctx context.Context, storeID int64, c shopify.Customer) error {
	m, err := mapCustomer(storeID, c, s.now())
	if err != nil {
		return err
	}
	return s.customerRepo.CreateIfMissing(ctx, m)
}

func credentialsOf(store *model.Store) shopify.Credentials {
	return shopify.Credentials{Domain: store.Domain, AccessToken: store.AccessToken}
}

// ==================== 分页循环 ====================

// paginate since_id 游标分页
//   - 空页或不足一页即结束
//   - 分页失败不前移游标，连续失败超过 MaxPageFailures 次放弃该实体流；成功一页即清零
//   - 单条失败计入 Errors 后跳过
func paginate[T any](
	ctx context.Context,
	s *SyncService,
	store *model.Store,
	entity string,
	fetch func(ctx context.Context, sinceID int64) ([]T, error),
	idOf func(T) int64,
	handle func(ctx context.Context, item T) (created bool, err error),
) EntityStats {
	ctx, span := s.tracer.Start(ctx, "sync."+entity)
	defer span.End()

	log := s.logger.With(zap.Int64("store_id", store.ID), zap.String("entity", entity))
	var (
		stats    EntityStats
		sinceID  int64
		failures int
	)

	for {
		if ctx.Err() != nil {
			log.Warn("sync cancelled", zap.Error(ctx.Err()))
			stats.Aborted = true
			break
		}

		items, err := fetch(ctx, sinceID)
		if err != nil {
			failures++
			log.Warn("fetch page failed",
				zap.Int64("since_id", sinceID),
				zap.Int("consecutive_failures", failures),
				zap.Error(err),
			)
			if failures > s.cfg.MaxPageFailures {
				log.Error("too many consecutive page failures, giving up")
				stats.Aborted = true
				break
			}
			continue
		}
		failures = 0
		stats.Pages++

		if len(items) == 0 {
			break
		}

		processPage(ctx, s.cfg.BatchSize, items, handle, &stats, log)

		for _, it := range items {
			if id := idOf(it); id > sinceID {
				sinceID = id
			}
		}
		if len(items) < s.cfg.PageSize {
			break
		}
	}

	metrics.AddSyncItems(entity, "created", stats.Created)
	metrics.AddSyncItems(entity, "updated", stats.Updated)
	metrics.AddSyncItems(entity, "error", stats.Errors)
	log.Info("entity sync finished",
		zap.Int("total", stats.Total),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("errors", stats.Errors),
		zap.Int("pages", stats.Pages),
		zap.Bool("aborted", stats.Aborted),
	)
	return stats
}

// processPage 按 batchSize 分批并发写入，批与批之间串行
func processPage[T any](
	ctx context.Context,
	batchSize int,
	items []T,
	handle func(context.Context, T) (bool, error),
	stats *EntityStats,
	log *zap.Logger,
) {
	var mu sync.Mutex
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}

		p := pool.New().WithMaxGoroutines(batchSize)
		for _, item := range items[start:end] {
			p.Go(func() {
				created, err := handle(ctx, item)

				mu.Lock()
				defer mu.Unlock()
				stats.Total++
				switch {
				case err != nil:
					stats.Errors++
					log.Warn("upsert item failed", zap.Error(err))
				case created:
					stats.Created++
				default:
					stats.Updated++
				}
			})
		}
		p.Wait()
	}
}
