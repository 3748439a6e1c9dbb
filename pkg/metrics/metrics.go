package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopinsight_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopinsight_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	syncJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopinsight_sync_jobs_total",
		Help: "Finished sync jobs by entity scope and terminal status",
	}, []string{"entity", "status"})

	syncJobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopinsight_sync_job_duration_seconds",
		Help:    "Wall time of sync jobs",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"entity"})

	syncItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopinsight_sync_items_total",
		Help: "Items processed by the sync pipeline by entity and outcome",
	}, []string{"entity", "outcome"})

	syncQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shopinsight_sync_queue_depth",
		Help: "Sync jobs waiting for a worker",
	})

	shopifyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopinsight_shopify_requests_total",
		Help: "Outbound Shopify Admin API requests",
	}, []string{"resource", "result"})

	analyticsCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopinsight_analytics_cache_total",
		Help: "Analytics cache lookups",
	}, []string{"result"})
)

// ObserveHTTPRequest 记录一次 HTTP 请求
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveSyncJob 记录同步任务结束
func ObserveSyncJob(entity, status string, duration time.Duration) {
	syncJobsTotal.WithLabelValues(entity, status).Inc()
	syncJobDuration.WithLabelValues(entity).Observe(duration.Seconds())
}

// AddSyncItems 记录同步条目，outcome: created / updated / error
func AddSyncItems(entity, outcome string, n int) {
	if n <= 0 {
		return
	}
	syncItemsTotal.WithLabelValues(entity, outcome).Add(float64(n))
}

func SetSyncQueueDepth(n int) {
	syncQueueDepth.Set(float64(n))
}

func ObserveShopifyRequest(resource, result string) {
	shopifyRequests.WithLabelValues(resource, result).Inc()
}

// ObserveAnalyticsCache result: hit / miss
func ObserveAnalyticsCache(result string) {
	analyticsCache.WithLabelValues(result).Inc()
}

// Handler Prometheus 抓取端点
func Handler() http.Handler {
	return promhttp.Handler()
}
