package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shop_insight_v1/internal/api/dto"
	"shop_insight_v1/internal/repository"
	"shop_insight_v1/pkg/kv"
	"shop_insight_v1/pkg/metrics"
)

const (
	defaultRangeDays = 30
	maxRangeDays     = 366
	dateLayout       = "2006-01-02"
)

// AnalyticsService 店铺分析，结果按 店铺+参数 缓存在 KV 中
type AnalyticsService struct {
	repo         repository.AnalyticsRepository
	productRepo  repository.ProductRepository
	customerRepo repository.CustomerRepository
	cache        kv.Store
	ttl          time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

func NewAnalyticsService(
	repo repository.AnalyticsRepository,
	productRepo repository.ProductRepository,
	customerRepo repository.CustomerRepository,
	cache kv.Store,
	ttl time.Duration,
	logger *zap.Logger,
) *AnalyticsService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AnalyticsService{
		repo:         repo,
		productRepo:  productRepo,
		customerRepo: customerRepo,
		cache:        cache,
		ttl:          ttl,
		logger:       logger.Named("analytics"),
		now:          time.Now,
	}
}

// ==================== 缓存 ====================

func cacheKey(storeID int64, parts ...interface{}) string {
	key := fmt.Sprintf("analytics:%d:", storeID)
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += fmt.Sprint(p)
	}
	return key
}

// cached 命中直接返回；缓存读写失败只降级为直接查询
func cached[T any](ctx context.Context, s *AnalyticsService, key string, load func() (T, error)) (T, error) {
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var out T
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			metrics.ObserveAnalyticsCache("hit")
			return out, nil
		}
	} else if !errors.Is(err, kv.ErrNotFound) {
		s.logger.Warn("analytics cache get failed", zap.String("key", key), zap.Error(err))
	}
	metrics.ObserveAnalyticsCache("miss")

	out, err := load()
	if err != nil {
		return out, err
	}
	if raw, err := json.Marshal(out); err == nil {
		if err := s.cache.Set(ctx, key, string(raw), s.ttl); err != nil {
			s.logger.Warn("analytics cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return out, nil
}

// Invalidate 同步完成后清除店铺的全部分析缓存
func (s *AnalyticsService) Invalidate(ctx context.Context, storeID int64) error {
	return s.cache.DeletePrefix(ctx, fmt.Sprintf("analytics:%d:", storeID))
}

// resolveRange 缺省为今天往前 30 天（UTC）
func (s *AnalyticsService) resolveRange(q dto.RangeQuery) (repository.DateRange, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	to, from := today, today.AddDate(0, 0, -(defaultRangeDays - 1))

	var err error
	if q.To != "" {
		if to, err = time.Parse(dateLayout, q.To); err != nil {
			return repository.DateRange{}, ErrInvalidDateRange.Wrap(err)
		}
		if q.From == "" {
			from = to.AddDate(0, 0, -(defaultRangeDays - 1))
		}
	}
	if q.From != "" {
		if from, err = time.Parse(dateLayout, q.From); err != nil {
			return repository.DateRange{}, ErrInvalidDateRange.Wrap(err)
		}
	}
	if from.After(to) || to.Sub(from) > maxRangeDays*24*time.Hour {
		return repository.DateRange{}, ErrInvalidDateRange
	}
	return repository.DateRange{From: from.Format(dateLayout), To: to.Format(dateLayout)}, nil
}

// ==================== 指标 ====================

// Overview 未指定区间时统计全部订单
func (s *AnalyticsService) Overview(ctx context.Context, storeID int64, q dto.RangeQuery) (*dto.OverviewResponse, error) {
	var dr *repository.DateRange
	if q.From != "" || q.To != "" {
		r, err := s.resolveRange(q)
		if err != nil {
			return nil, err
		}
		dr = &r
	}

	key := cacheKey(storeID, "overview", "all")
	if dr != nil {
		key = cacheKey(storeID, "overview", dr.From, dr.To)
	}
	return cached(ctx, s, key, func() (*dto.OverviewResponse, error) {
		totals, err := s.repo.OrderTotals(ctx, storeID, dr)
		if err != nil {
			return nil, err
		}
		customers, err := s.customerRepo.CountByStore(ctx, storeID)
		if err != nil {
			return nil, err
		}
		products, err := s.productRepo.CountByStore(ctx, storeID)
		if err != nil {
			return nil, err
		}

		aov := decimal.Zero
		if totals.Orders > 0 {
			aov = totals.Revenue.Div(decimal.NewFromInt(totals.Orders)).Round(2)
		}
		return &dto.OverviewResponse{
			Revenue:           totals.Revenue,
			Orders:            totals.Orders,
			Customers:         customers,
			Products:          products,
			AverageOrderValue: aov,
		}, nil
	})
}

func (s *AnalyticsService) SalesByDay(ctx context.Context, storeID int64, q dto.RangeQuery) ([]repository.DailySales, error) {
	dr, err := s.resolveRange(q)
	if err != nil {
		return nil, err
	}
	return cached(ctx, s, cacheKey(storeID, "sales", dr.From, dr.To), func() ([]repository.DailySales, error) {
		rows, err := s.repo.SalesByDay(ctx, storeID, dr)
		if rows == nil {
			rows = []repository.DailySales{}
		}
		return rows, err
	})
}

func (s *AnalyticsService) TopProducts(ctx context.Context, storeID int64, q dto.TopQuery) ([]repository.ProductSales, error) {
	dr, err := s.resolveRange(q.RangeQuery)
	if err != nil {
		return nil, err
	}
	limit := clampLimit(q.Limit)
	return cached(ctx, s, cacheKey(storeID, "top-products", dr.From, dr.To, limit), func() ([]repository.ProductSales, error) {
		rows, err := s.repo.TopProducts(ctx, storeID, dr, limit)
		if rows == nil {
			rows = []repository.ProductSales{}
		}
		return rows, err
	})
}

// TopCustomers 按累计消费排序，与区间无关
func (s *AnalyticsService) TopCustomers(ctx context.Context, storeID int64, limit int) ([]dto.TopCustomer, error) {
	limit = clampLimit(limit)
	return cached(ctx, s, cacheKey(storeID, "top-customers", limit), func() ([]dto.TopCustomer, error) {
		customers, err := s.repo.TopCustomers(ctx, storeID, limit)
		if err != nil {
			return nil, err
		}
		out := make([]dto.TopCustomer, 0, len(customers))
		for i := range customers {
			c := &customers[i]
			out = append(out, dto.TopCustomer{
				ID:          c.ID,
				Name:        c.FullName(),
				Email:       c.Email,
				OrdersCount: c.OrdersCount,
				TotalSpent:  c.TotalSpent,
			})
		}
		return out, nil
	})
}

func (s *AnalyticsService) CustomerSplit(ctx context.Context, storeID int64, q dto.RangeQuery) (*dto.CustomerSplitResponse, error) {
	dr, err := s.resolveRange(q)
	if err != nil {
		return nil, err
	}
	return cached(ctx, s, cacheKey(storeID, "customer-split", dr.From, dr.To), func() (*dto.CustomerSplitResponse, error) {
		split, err := s.repo.CustomerSplit(ctx, storeID, dr)
		if err != nil {
			return nil, err
		}
		resp := &dto.CustomerSplitResponse{
			From:               dr.From,
			To:                 dr.To,
			NewCustomers:       split.NewCustomers,
			ReturningCustomers: split.ReturningCustomers,
			GuestOrders:        split.GuestOrders,
		}
		if total := split.NewCustomers + split.ReturningCustomers; total > 0 {
			resp.ReturningRate = float64(split.ReturningCustomers) / float64(total)
		}
		return resp, nil
	})
}

// Heatmap 星期 x 小时 的下单分布
func (s *AnalyticsService) Heatmap(ctx context.Context, storeID int64, q dto.RangeQuery) (*dto.HeatmapResponse, error) {
	dr, err := s.resolveRange(q)
	if err != nil {
		return nil, err
	}
	return cached(ctx, s, cacheKey(storeID, "heatmap", dr.From, dr.To), func() (*dto.HeatmapResponse, error) {
		cells, err := s.repo.Heatmap(ctx, storeID, dr)
		if err != nil {
			return nil, err
		}
		resp := &dto.HeatmapResponse{}
		for _, c := range cells {
			if c.Weekday < 0 || c.Weekday > 6 || c.Hour < 0 || c.Hour > 23 {
				continue
			}
			resp.Matrix[c.Weekday][c.Hour] = c.Orders
			if c.Orders > resp.Peak {
				resp.Peak = c.Orders
			}
		}
		return resp, nil
	})
}

const topDiscountCodes = 10

// Discounts 折扣汇总；折扣码在内存中计数（每个订单的码去重）
func (s *AnalyticsService) Discounts(ctx context.Context, storeID int64, q dto.RangeQuery) (*dto.DiscountSummaryResponse, error) {
	dr, err := s.resolveRange(q)
	if err != nil {
		return nil, err
	}
	return cached(ctx, s, cacheKey(storeID, "discounts", dr.From, dr.To), func() (*dto.DiscountSummaryResponse, error) {
		totals, err := s.repo.DiscountTotals(ctx, storeID, dr)
		if err != nil {
			return nil, err
		}
		codes, err := s.repo.DiscountCodes(ctx, storeID, dr)
		if err != nil {
			return nil, err
		}

		resp := &dto.DiscountSummaryResponse{
			Orders:           totals.Orders,
			DiscountedOrders: totals.DiscountedOrders,
			TotalDiscount:    totals.TotalDiscount,
			AverageDiscount:  decimal.Zero,
			TopCodes:         countCodes(codes, topDiscountCodes),
		}
		if totals.Orders > 0 {
			resp.DiscountRate = float64(totals.DiscountedOrders) / float64(totals.Orders)
		}
		if totals.DiscountedOrders > 0 {
			resp.AverageDiscount = totals.TotalDiscount.Div(decimal.NewFromInt(totals.DiscountedOrders)).Round(2)
		}
		return resp, nil
	})
}

func countCodes[S ~[]string](orders []S, limit int) []dto.DiscountCodeUsage {
	counts := make(map[string]int)
	for _, codes := range orders {
		seen := make(map[string]bool, len(codes))
		for _, code := range codes {
			if code == "" || seen[code] {
				continue
			}
			seen[code] = true
			counts[code]++
		}
	}

	out := make([]dto.DiscountCodeUsage, 0, len(counts))
	for code, n := range counts {
		out = append(out, dto.DiscountCodeUsage{Code: code, Orders: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Orders != out[j].Orders {
			return out[i].Orders > out[j].Orders
		}
		return out[i].Code < out[j].Code
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > 100 {
		return 100
	}
	return limit
}
