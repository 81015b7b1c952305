// Package ratelimit spaces out requests per host with a token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/journal-harvester/internal/harvest"
	"github.com/JakeFAU/journal-harvester/internal/metrics"
)

// Config holds the per-host limit. A non-positive RequestsPerSecond disables limiting.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// Fetcher delays each request until its host's bucket has a token.
type Fetcher struct {
	next  harvest.Fetcher
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New wraps next with a per-host limiter.
func New(next harvest.Fetcher, cfg Config) *Fetcher {
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Fetcher{
		next:     next,
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Fetch waits for a token, then delegates to the wrapped fetcher.
func (f *Fetcher) Fetch(ctx context.Context, url string) (harvest.Response, error) {
	if err := f.Wait(ctx, url); err != nil {
		return harvest.Response{}, err
	}
	return f.next.Fetch(ctx, url)
}

// Wait blocks until a token is available for url's host or ctx is done.
func (f *Fetcher) Wait(ctx context.Context, url string) error {
	if f.limit == rate.Inf {
		return nil
	}
	site := metrics.SanitizeSite(url)
	limiter := f.limiterFor(site)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(site, waited)
	}
	return nil
}

func (f *Fetcher) limiterFor(site string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	limiter, ok := f.limiters[site]
	if !ok {
		limiter = rate.NewLimiter(f.limit, f.burst)
		f.limiters[site] = limiter
	}
	return limiter
}
