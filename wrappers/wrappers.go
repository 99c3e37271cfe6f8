// Package wrappers provides decorators for edge functions: rate limiting,
// adaptive rate limiting, and bounded retries. Wrappers compose, so a
// rate-limited edge can also retry.
package wrappers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/jamesturk/databeakers/pipeline"
)

// RateLimit caps how often the wrapped edge function runs, blocking until
// the limiter admits the call or the context is canceled.
func RateLimit(fn pipeline.EdgeFunc, requestsPerSecond float64) pipeline.EdgeFunc {
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	return func(ctx context.Context, item any) (any, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return fn(ctx, item)
	}
}

// Retry re-runs the wrapped edge function up to retries extra times with
// fibonacci backoff. Every error is considered retryable; the last error is
// returned when attempts run out.
func Retry(fn pipeline.EdgeFunc, retries uint64) pipeline.EdgeFunc {
	return func(ctx context.Context, item any) (any, error) {
		var result any
		backoff := retry.WithMaxRetries(retries, retry.NewFibonacci(100*time.Millisecond))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			var err error
			result, err = fn(ctx, item)
			if err != nil {
				slog.Debug("edge retry", "error", err)
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

// AdaptiveOption configures AdaptiveRateLimit.
type AdaptiveOption func(*adaptive)

// WithRequestsPerSecond sets the desired steady-state rate (default 1).
func WithRequestsPerSecond(rps float64) AdaptiveOption {
	return func(a *adaptive) {
		if rps > 0 {
			a.desired = rps
		}
	}
}

// WithBackOffRate sets the slow-down/speed-up factor (default 2).
func WithBackOffRate(factor float64) AdaptiveOption {
	return func(a *adaptive) {
		if factor > 1 {
			a.backOffRate = factor
		}
	}
}

// WithSpeedUpAfter sets how many consecutive successes speed the rate back
// up (default 1).
func WithSpeedUpAfter(n int) AdaptiveOption {
	return func(a *adaptive) {
		if n > 0 {
			a.speedUpAfter = n
		}
	}
}

type adaptive struct {
	fn        pipeline.EdgeFunc
	isTimeout func(error) bool
	limiter   *rate.Limiter

	mu           sync.Mutex
	rps          float64
	desired      float64
	backOffRate  float64
	speedUpAfter int
	successes    int
}

// AdaptiveRateLimit slows the wrapped edge down by the back-off factor every
// time isTimeout matches its error, and speeds it back up toward the desired
// rate after enough consecutive successes.
func AdaptiveRateLimit(fn pipeline.EdgeFunc, isTimeout func(error) bool, opts ...AdaptiveOption) pipeline.EdgeFunc {
	a := &adaptive{
		fn:           fn,
		isTimeout:    isTimeout,
		desired:      1,
		backOffRate:  2,
		speedUpAfter: 1,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.rps = a.desired
	a.limiter = rate.NewLimiter(rate.Limit(a.rps), 1)
	return a.call
}

func (a *adaptive) call(ctx context.Context, item any) (any, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	result, err := a.fn(ctx, item)
	if err != nil {
		if a.isTimeout(err) {
			a.slowDown()
		}
		return nil, err
	}
	a.speedUp()
	return result, nil
}

func (a *adaptive) slowDown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.successes = 0
	a.rps /= a.backOffRate
	a.limiter.SetLimit(rate.Limit(a.rps))
	slog.Warn("adaptive rate limit slow down", "requests_per_second", a.rps)
}

func (a *adaptive) speedUp() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.successes++
	if a.successes < a.speedUpAfter || a.rps >= a.desired {
		return
	}
	a.successes = 0
	a.rps *= a.backOffRate
	if a.rps > a.desired {
		a.rps = a.desired
	}
	a.limiter.SetLimit(rate.Limit(a.rps))
	slog.Info("adaptive rate limit speed up", "requests_per_second", a.rps)
}
