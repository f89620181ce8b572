package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a reservation does not fit the
// remaining memory budget.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits. Zero values mean unlimited.
type Config struct {
	// MemoryLimitBytes caps the bytes held by the decoded index and the
	// content cache together.
	MemoryLimitBytes int64

	// FetchRate is the number of content fetches admitted per second.
	FetchRate float64

	// FetchBurst is the token bucket size for fetches. Defaults to 1.
	FetchBurst int
}

// Controller shares a memory budget and a fetch rate across the components
// of one service. A nil *Controller admits everything.
type Controller struct {
	limit   int64
	budget  *semaphore.Weighted
	used    atomic.Int64
	fetches *rate.Limiter
}

// NewController creates a Controller enforcing cfg.
func NewController(cfg Config) *Controller {
	c := &Controller{limit: cfg.MemoryLimitBytes}
	if c.limit > 0 {
		c.budget = semaphore.NewWeighted(c.limit)
	}
	if cfg.FetchRate > 0 {
		c.fetches = rate.NewLimiter(rate.Limit(cfg.FetchRate), max(cfg.FetchBurst, 1))
	}
	return c
}

// AcquireMemory reserves n bytes or fails with ErrMemoryLimitExceeded.
// It never blocks.
func (c *Controller) AcquireMemory(n int64) error {
	if c.TryAcquireMemory(n) {
		return nil
	}
	return ErrMemoryLimitExceeded
}

// TryAcquireMemory reserves n bytes and reports whether the budget allowed it.
func (c *Controller) TryAcquireMemory(n int64) bool {
	switch {
	case c == nil || n <= 0:
		return true
	case c.budget != nil && !c.budget.TryAcquire(n):
		return false
	}
	c.used.Add(n)
	return true
}

// ReleaseMemory returns n previously reserved bytes.
func (c *Controller) ReleaseMemory(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.used.Add(-n)
	if c.budget != nil {
		c.budget.Release(n)
	}
}

// MemoryUsage reports the bytes currently reserved.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.used.Load()
}

// MemoryLimit reports the memory budget, 0 when unlimited.
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.limit
}

// AcquireFetch blocks until one more fetch is admitted or ctx ends.
func (c *Controller) AcquireFetch(ctx context.Context) error {
	if c == nil || c.fetches == nil {
		return ctx.Err()
	}
	return c.fetches.Wait(ctx)
}

// TryAcquireFetch admits one fetch if a token is available right now.
func (c *Controller) TryAcquireFetch() bool {
	return c == nil || c.fetches == nil || c.fetches.Allow()
}
