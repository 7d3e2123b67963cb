package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter enforces a per-host QPS ceiling independent of Colly's own
// LimitRule delay. The same per-domain rate.Limiter pattern backs both the
// Fetcher's per-host concurrency cap and the browser pool's per-domain QPS.
type HostLimiter struct {
	defaultQPS float64
	limiters   sync.Map // host -> *rate.Limiter
}

// NewHostLimiter builds a limiter defaulting every unseen host to qps
// requests per second (burst of 1).
func NewHostLimiter(qps float64) *HostLimiter {
	if qps <= 0 {
		qps = 4
	}
	return &HostLimiter{defaultQPS: qps}
}

// Wait blocks until host's rate budget allows one more request, additionally
// enforcing crawlDelay (from robots.txt) as a floor on the inter-request gap
// when it exceeds what the QPS limiter alone would allow.
func (l *HostLimiter) Wait(ctx context.Context, rawURL string, crawlDelay time.Duration) error {
	host := Host(rawURL)
	if host == "" {
		return fmt.Errorf("rate limit: cannot parse host from %q", rawURL)
	}
	limiter := l.limiterFor(host, crawlDelay)
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func (l *HostLimiter) limiterFor(host string, crawlDelay time.Duration) *rate.Limiter {
	qps := l.defaultQPS
	if crawlDelay > 0 {
		if fromDelay := 1.0 / crawlDelay.Seconds(); fromDelay < qps {
			qps = fromDelay
		}
	}
	val, _ := l.limiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(qps), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(qps), 1)
		l.limiters.Store(host, limiter)
		return limiter
	}
	if crawlDelay > 0 {
		limiter.SetLimit(rate.Limit(qps))
	}
	return limiter
}
