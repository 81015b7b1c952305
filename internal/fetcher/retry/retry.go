// Package retry wraps a harvest.Fetcher with a bounded retry-with-backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/journal-harvester/internal/harvest"
	"github.com/JakeFAU/journal-harvester/internal/metrics"
)

// Default policy values.
const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = time.Second
)

// Policy is an exponential backoff schedule without jitter: the wait after
// attempt n (0-based) is Base * 2^n.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
}

// DefaultPolicy returns three attempts with a one second base.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Base: DefaultBackoff}
}

// Backoff returns the wait duration after the given 0-based attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return p.Base << uint(attempt)
}

// ShouldRetry reports whether another attempt follows a failed attempt.
func (p Policy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return attempt+1 < p.MaxAttempts
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fetcher retries the wrapped fetcher according to its Policy.
type Fetcher struct {
	next   harvest.Fetcher
	policy Policy
	sleep  Sleeper
	logger *zap.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithSleeper replaces the wait function, mostly for tests.
func WithSleeper(s Sleeper) Option {
	return func(f *Fetcher) {
		if s != nil {
			f.sleep = s
		}
	}
}

// New wraps next with the retry policy.
func New(next harvest.Fetcher, policy Policy, logger *zap.Logger, opts ...Option) *Fetcher {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	if policy.Base < 0 {
		policy.Base = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fetcher{next: next, policy: policy, sleep: SleepContext, logger: logger}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the first successful response. Once the attempts are exhausted
// the returned error wraps harvest.ErrFetchFailed and the last attempt's error.
func (f *Fetcher) Fetch(ctx context.Context, url string) (harvest.Response, error) {
	var lastErr error
	for attempt := 0; attempt < f.policy.MaxAttempts; attempt++ {
		resp, err := f.next.Fetch(ctx, url)
		if err == nil {
			metrics.ObserveFetchAttempt(url, "success", len(resp.Body))
			f.logger.Debug("fetch succeeded", zap.String("url", url), zap.Int("attempt", attempt+1))
			return resp, nil
		}
		lastErr = err
		metrics.ObserveFetchAttempt(url, "error", 0)
		f.logger.Warn("request failed",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", f.policy.MaxAttempts),
			zap.Error(err),
		)
		if !f.policy.ShouldRetry(err, attempt) {
			break
		}
		wait := f.policy.Backoff(attempt)
		f.logger.Info("retrying", zap.String("url", url), zap.Duration("backoff", wait))
		metrics.ObserveBackoff(wait)
		if err := f.sleep(ctx, wait); err != nil {
			lastErr = err
			break
		}
	}
	f.logger.Warn("all retry attempts failed", zap.String("url", url))
	return harvest.Response{}, fmt.Errorf("%w: %s: %w", harvest.ErrFetchFailed, url, lastErr)
}
