// Package ratelimit throttles abuse-prone operations (code issuance, login)
// with fixed-window counters kept in Redis.
package ratelimit

import (
	"context"
	"time"

	"github.com/dmitrijs2005/smartwaste/internal/common"
	"github.com/dmitrijs2005/smartwaste/internal/logging"
	"github.com/redis/go-redis/v9"
)

// Counter increments a key and starts its expiry window on first use.
type Counter interface {
	IncrWithExpire(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter implements Counter on a Redis client.
type RedisCounter struct {
	client redis.UniversalClient
}

func NewRedisCounter(client redis.UniversalClient) *RedisCounter {
	return &RedisCounter{client: client}
}

// IncrWithExpire increments key and sets its expiry only if none is set, so
// the window is fixed from the first hit.
func (c *RedisCounter) IncrWithExpire(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Limiter allows at most limit hits per key within window. A Limiter with no
// counter allows everything. Counter failures are logged and let the request
// through.
type Limiter struct {
	counter Counter
	scope   string
	limit   int64
	window  time.Duration
	log     logging.Logger
	onLimit func(scope string)
}

func New(counter Counter, scope string, limit int, window time.Duration, log logging.Logger) *Limiter {
	return &Limiter{
		counter: counter,
		scope:   scope,
		limit:   int64(limit),
		window:  window,
		log:     log.With("module", "ratelimit", "scope", scope),
	}
}

// OnLimit registers a callback invoked whenever a hit is rejected.
func (l *Limiter) OnLimit(fn func(scope string)) *Limiter {
	l.onLimit = fn
	return l
}

// Allow records a hit for key and returns common.ErrRateLimited once the
// window's budget is spent.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	if l == nil || l.counter == nil || l.limit <= 0 {
		return nil
	}

	n, err := l.counter.IncrWithExpire(ctx, "ratelimit:"+l.scope+":"+key, l.window)
	if err != nil {
		l.log.Warn(ctx, "rate limiter unavailable, allowing request", "error", err)
		return nil
	}
	if n > l.limit {
		if l.onLimit != nil {
			l.onLimit(l.scope)
		}
		return common.ErrRateLimited
	}
	return nil
}
