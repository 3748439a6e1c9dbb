package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"shop_insight_v1/internal/apperr"
)

// SyncRateLimit 按 店铺 + 同步范围 限制手动触发频率
// 店铺归属须在此之前校验；后续 handler 出错（如入队失败）时回滚本次冷却
//
//	router.POST("/sync/store/:id",
//	    syncCtl.LoadStore,
//	    middleware.SyncRateLimit(limiter, model.SyncEntityAll, time.Minute),
//	    syncCtl.SyncStore,
//	)
func SyncRateLimit(limiter *SyncRateLimiter, entity string, interval time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if interval <= 0 {
			c.Next()
			return
		}

		storeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || storeID <= 0 {
			abortWith(c, apperr.BadRequest("invalid store id"))
			return
		}

		key := StoreSyncKey(storeID, entity)
		result := limiter.Check(key, interval)
		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(retrySeconds(result.RetryAfter)))
			abortWith(c, apperr.TooManyRequests(formatRetryMessage(result.RetryAfter)))
			return
		}

		c.Next()

		if len(c.Errors) > 0 {
			limiter.Reset(key)
		}
	}
}

func retrySeconds(d time.Duration) int {
	s := int(d.Seconds())
	if d > time.Duration(s)*time.Second {
		s++
	}
	return s
}

// formatRetryMessage 格式化重试提示
func formatRetryMessage(d time.Duration) string {
	seconds := retrySeconds(d)
	if seconds < 60 {
		return fmt.Sprintf("sync cooling down, retry in %d seconds", seconds)
	}

	minutes, rest := seconds/60, seconds%60
	if rest == 0 {
		return fmt.Sprintf("sync cooling down, retry in %d minutes", minutes)
	}
	return fmt.Sprintf("sync cooling down, retry in %dm%ds", minutes, rest)
}
