package shopify

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiters 按店铺域名的令牌桶
// rps<=0 时不限流
type Limiters struct {
	rps   rate.Limit
	burst int
	m     sync.Map // domain -> *rate.Limiter
}

func NewLimiters(rps float64, burst int) *Limiters {
	if burst <= 0 {
		burst = 1
	}
	return &Limiters{rps: rate.Limit(rps), burst: burst}
}

// Wait 阻塞到拿到令牌或 ctx 结束
func (l *Limiters) Wait(ctx context.Context, domain string) error {
	if l.rps <= 0 {
		return ctx.Err()
	}
	actual, _ := l.m.LoadOrStore(domain, rate.NewLimiter(l.rps, l.burst))
	return actual.(*rate.Limiter).Wait(ctx)
}
