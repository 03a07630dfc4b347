package scraper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kardainfra/karda/config"
)

type retryManager struct {
	cfg     *config.Config
	metrics *Metrics

	mu           sync.Mutex
	attempts     map[string]int
	totalRetries int
}

func newRetryManager(cfg *config.Config, metrics *Metrics) *retryManager {
	return &retryManager{
		cfg:      cfg,
		metrics:  metrics,
		attempts: make(map[string]int),
	}
}

// Allow records a retry for url and reports whether one may be made.
// Permanent failures (403, 404) are never retried.
func (rm *retryManager) Allow(url string, err error) bool {
	if rm.cfg.MaxRetries <= 0 {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) && !fe.Retryable() {
		return false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.attempts[url] >= rm.cfg.MaxRetries {
		return false
	}
	rm.attempts[url]++
	rm.totalRetries++
	rm.metrics.IncRetries()
	return true
}

// Wait sleeps out the backoff for attempt or returns early on cancellation.
func (rm *retryManager) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(rm.backoff(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (rm *retryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rm.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rm.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (rm *retryManager) TotalRetries() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.totalRetries
}
