package shopify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"shop_insight_v1/pkg/metrics"
)

// Credentials 单个店铺的访问凭证
type Credentials struct {
	Domain      string
	AccessToken string
}

// Config 客户端参数
type Config struct {
	APIVersion string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

// ErrRateLimited 平台返回 429
var ErrRateLimited = errors.New("shopify: rate limited")

// APIError 非 2xx 响应
type APIError struct {
	StatusCode int
	Resource   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shopify %s: status %d: %s", e.Resource, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return nil
}

// Client Admin REST 分页客户端
type Client struct {
	http     *resty.Client
	cfg      Config
	limiters *Limiters
	logger   *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-01"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "shop-insight/1.0")

	return &Client{
		http:     httpClient,
		cfg:      cfg,
		limiters: NewLimiters(cfg.RatePerSec, cfg.Burst),
		logger:   logger,
	}
}

// ListProducts since_id 游标分页拉取商品
func (c *Client) ListProducts(ctx context.Context, cred Credentials, sinceID int64, limit int) ([]Product, error) {
	var page productsPage
	if err := c.list(ctx, cred, "products", sinceID, limit, nil, &page); err != nil {
		return nil, err
	}
	return page.Products, nil
}

// ListCustomers since_id 游标分页拉取客户
func (c *Client) ListCustomers(ctx context.Context, cred Credentials, sinceID int64, limit int) ([]Customer, error) {
	var page customersPage
	if err := c.list(ctx, cred, "customers", sinceID, limit, nil, &page); err != nil {
		return nil, err
	}
	return page.Customers, nil
}

// ListOrders since_id 游标分页拉取订单，包含已关闭/已取消订单
func (c *Client) ListOrders(ctx context.Context, cred Credentials, sinceID int64, limit int) ([]Order, error) {
	var page ordersPage
	extra := map[string]string{"status": "any"}
	if err := c.list(ctx, cred, "orders", sinceID, limit, extra, &page); err != nil {
		return nil, err
	}
	return page.Orders, nil
}

func (c *Client) list(ctx context.Context, cred Credentials, resource string, sinceID int64, limit int, extra map[string]string, out interface{}) error {
	if err := c.limiters.Wait(ctx, cred.Domain); err != nil {
		return err
	}

	params := map[string]string{"limit": strconv.Itoa(limit)}
	if sinceID > 0 {
		params["since_id"] = strconv.FormatInt(sinceID, 10)
	}
	for k, v := range extra {
		params[k] = v
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Shopify-Access-Token", cred.AccessToken).
		SetQueryParams(params).
		SetResult(out).
		Get(c.resourceURL(cred.Domain, resource))
	if err != nil {
		metrics.ObserveShopifyRequest(resource, "error")
		return fmt.Errorf("请求 shopify %s 失败: %w", resource, err)
	}

	if resp.IsError() {
		metrics.ObserveShopifyRequest(resource, strconv.Itoa(resp.StatusCode()))
		c.logger.Warn("shopify request failed",
			zap.String("domain", cred.Domain),
			zap.String("resource", resource),
			zap.Int("status", resp.StatusCode()),
		)
		return &APIError{StatusCode: resp.StatusCode(), Resource: resource, Body: truncate(resp.String(), 256)}
	}

	metrics.ObserveShopifyRequest(resource, "ok")
	return nil
}

// resourceURL 已带协议的域名原样使用（本地调试/测试）
func (c *Client) resourceURL(domain, resource string) string {
	base := strings.TrimRight(domain, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return fmt.Sprintf("%s/admin/api/%s/%s.json", base, c.cfg.APIVersion, resource)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
