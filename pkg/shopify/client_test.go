package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient() *Client {
	return NewClient(Config{APIVersion: "2024-01", Timeout: 5 * time.Second}, zap.NewNop())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListProducts_SendsTokenAndCursor(t *testing.T) {
	var gotPath, gotToken, gotSince, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("X-Shopify-Access-Token")
		gotSince = r.URL.Query().Get("since_id")
		gotLimit = r.URL.Query().Get("limit")
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"products": []map[string]interface{}{
				{"id": 101, "title": "Mug", "tags": "a, b", "variants": []map[string]interface{}{{"id": 1, "price": "9.50"}}},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient()
	products, err := c.ListProducts(context.Background(), Credentials{Domain: srv.URL, AccessToken: "shpat_x"}, 100, 50)
	require.NoError(t, err)

	assert.Equal(t, "/admin/api/2024-01/products.json", gotPath)
	assert.Equal(t, "shpat_x", gotToken)
	assert.Equal(t, "100", gotSince)
	assert.Equal(t, "50", gotLimit)
	require.Len(t, products, 1)
	assert.Equal(t, int64(101), products[0].ID)
	assert.Equal(t, "9.50", products[0].Variants[0].Price)
}

func TestListOrders_FirstPageHasNoCursor(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"orders": []map[string]interface{}{
				{"id": 7, "total_price": "20.00", "customer": map[string]interface{}{"id": 555, "email": "c@x.com"}},
			},
		})
	}))
	defer srv.Close()

	orders, err := newTestClient().ListOrders(context.Background(), Credentials{Domain: srv.URL}, 0, 50)
	require.NoError(t, err)

	assert.NotContains(t, query, "since_id")
	assert.Contains(t, query, "status=any")
	require.Len(t, orders, 1)
	require.NotNil(t, orders[0].Customer)
	assert.Equal(t, int64(555), orders[0].Customer.ID)
}

func TestList_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "customers") {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"errors": "Exceeded 2 calls per second"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"errors": "Invalid API key"})
	}))
	defer srv.Close()

	c := newTestClient()
	cred := Credentials{Domain: srv.URL, AccessToken: "bad"}

	_, err := c.ListProducts(context.Background(), cred, 0, 50)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.False(t, errors.Is(err, ErrRateLimited))

	_, err = c.ListCustomers(context.Background(), cred, 0, 50)
	assert.True(t, errors.Is(err, ErrRateLimited))
}

func TestResourceURL(t *testing.T) {
	c := newTestClient()
	assert.Equal(t, "https://demo.myshopify.com/admin/api/2024-01/orders.json", c.resourceURL("demo.myshopify.com", "orders"))
	assert.Equal(t, "http://127.0.0.1:9000/admin/api/2024-01/orders.json", c.resourceURL("http://127.0.0.1:9000/", "orders"))
}

func TestLimiters_ThrottlePerDomain(t *testing.T) {
	l := NewLimiters(1000, 1)
	var calls int32
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx, "a.myshopify.com"))
		atomic.AddInt32(&calls, 1)
	}
	assert.Equal(t, int32(3), calls)

	slow := NewLimiters(0.001, 1)
	require.NoError(t, slow.Wait(ctx, "b.myshopify.com"))
	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Error(t, slow.Wait(cctx, "b.myshopify.com"), "桶已空时应在 ctx 超时后返回错误")
	// 其它域名互不影响
	assert.NoError(t, slow.Wait(ctx, "c.myshopify.com"))
}

func TestNormalizeDomain(t *testing.T) {
	cases := []struct {
		in, want string
		ok       bool
	}{
		{"demo", "demo.myshopify.com", true},
		{" https://Demo.myshopify.com/admin ", "demo.myshopify.com", true},
		{"shop.example.com", "shop.example.com", true},
		{"", "", false},
		{"bad_domain!", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizeDomain(tc.in)
		if tc.ok {
			assert.NoError(t, err, tc.in)
			assert.Equal(t, tc.want, got)
		} else {
			assert.ErrorIs(t, err, ErrInvalidDomain, tc.in)
		}
	}
}
