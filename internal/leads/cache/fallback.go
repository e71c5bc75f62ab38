package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"leadtrack/internal/leads/models"
	id "leadtrack/pkg/domain"
	"leadtrack/pkg/platform/circuit"
	"leadtrack/pkg/platform/sentinel"
)

// Cache is the lead cache contract shared by every implementation. Find
// returns sentinel.ErrNotFound on a miss.
type Cache interface {
	Find(ctx context.Context, nid id.NationalID) (*models.Lead, error)
	Save(ctx context.Context, lead *models.Lead) error
	Invalidate(ctx context.Context, nid id.NationalID) error
}

// FallbackCache sends traffic to primary until the breaker opens, then to
// fallback until primary recovers. Invalidations always reach fallback. One
// that cannot reach primary is queued, and the queue is replayed against
// primary before primary serves anything again.
type FallbackCache struct {
	primary  Cache
	fallback Cache
	breaker  *circuit.Breaker
	logger   *slog.Logger

	mu      sync.Mutex
	seq     uint64
	pending map[id.NationalID]uint64
}

func NewFallbackCache(primary, fallback Cache, breaker *circuit.Breaker, logger *slog.Logger) *FallbackCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackCache{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		logger:   logger,
		pending:  make(map[id.NationalID]uint64),
	}
}

func (c *FallbackCache) Find(ctx context.Context, nid id.NationalID) (*models.Lead, error) {
	if !c.usePrimary(ctx) {
		return c.fallback.Find(ctx, nid)
	}
	lead, err := c.primary.Find(ctx, nid)
	if err == nil || errors.Is(err, sentinel.ErrNotFound) {
		if c.recordSuccess(ctx) {
			return lead, err
		}
		return c.fallback.Find(ctx, nid)
	}
	c.recordFailure(ctx, err)
	return c.fallback.Find(ctx, nid)
}

func (c *FallbackCache) Save(ctx context.Context, lead *models.Lead) error {
	if !c.usePrimary(ctx) {
		return c.fallback.Save(ctx, lead)
	}
	if err := c.primary.Save(ctx, lead); err != nil {
		c.recordFailure(ctx, err)
		return c.fallback.Save(ctx, lead)
	}
	if c.recordSuccess(ctx) {
		return nil
	}
	return c.fallback.Save(ctx, lead)
}

func (c *FallbackCache) Invalidate(ctx context.Context, nid id.NationalID) error {
	fallbackErr := c.fallback.Invalidate(ctx, nid)
	if !c.usePrimary(ctx) {
		c.markPending(nid)
		return fallbackErr
	}
	if err := c.primary.Invalidate(ctx, nid); err != nil {
		c.markPending(nid)
		c.recordFailure(ctx, err)
		return fallbackErr
	}
	c.recordSuccess(ctx)
	return fallbackErr
}

// Pending returns how many invalidations still have to reach primary.
func (c *FallbackCache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// usePrimary reports whether primary may serve this call. Queued
// invalidations are replayed first; a replay failure counts against primary.
func (c *FallbackCache) usePrimary(ctx context.Context) bool {
	if !c.breaker.Allow() {
		return false
	}
	if err := c.replayPending(ctx); err != nil {
		c.recordFailure(ctx, err)
		return false
	}
	return true
}

func (c *FallbackCache) markPending(nid id.NationalID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.pending[nid] = c.seq
}

func (c *FallbackCache) replayPending(ctx context.Context) error {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return nil
	}
	queued := make(map[id.NationalID]uint64, len(c.pending))
	for nid, seq := range c.pending {
		queued[nid] = seq
	}
	c.mu.Unlock()

	for nid, seq := range queued {
		if err := c.primary.Invalidate(ctx, nid); err != nil {
			return err
		}
		c.mu.Lock()
		// A newer mark for nid stays queued.
		if c.pending[nid] == seq {
			delete(c.pending, nid)
		}
		c.mu.Unlock()
	}
	c.logger.InfoContext(ctx, "replayed lead cache invalidations", "breaker", c.breaker.Name(), "count", len(queued))
	return nil
}

func (c *FallbackCache) recordSuccess(ctx context.Context) bool {
	usePrimary, change := c.breaker.RecordSuccess()
	if change.Closed {
		c.logger.InfoContext(ctx, "lead cache primary recovered", "breaker", c.breaker.Name())
	}
	return usePrimary
}

func (c *FallbackCache) recordFailure(ctx context.Context, err error) {
	_, change := c.breaker.RecordFailure()
	if change.Opened {
		c.logger.WarnContext(ctx, "lead cache primary unavailable, using in-memory fallback",
			"breaker", c.breaker.Name(),
			"error", err,
		)
	}
}
