package cache

import (
	"context"
	"sync"
	"time"

	"leadtrack/internal/leads/models"
	id "leadtrack/pkg/domain"
	"leadtrack/pkg/platform/sentinel"
)

type cachedLead struct {
	lead     models.Lead
	storedAt time.Time
}

// InMemoryCache holds leads in process with TTL expiration.
type InMemoryCache struct {
	mu    sync.RWMutex
	leads map[id.NationalID]cachedLead
	ttl   time.Duration
	now   func() time.Time
}

func NewInMemoryCache(ttl time.Duration) *InMemoryCache {
	return &InMemoryCache{
		leads: make(map[id.NationalID]cachedLead),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Find returns sentinel.ErrNotFound when the lead is absent or expired.
func (c *InMemoryCache) Find(_ context.Context, nid id.NationalID) (*models.Lead, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cached, ok := c.leads[nid]
	if !ok || c.now().Sub(cached.storedAt) >= c.ttl {
		return nil, sentinel.ErrNotFound
	}
	lead := cached.lead
	return &lead, nil
}

func (c *InMemoryCache) Save(_ context.Context, lead *models.Lead) error {
	if lead == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leads[lead.NationalID] = cachedLead{lead: *lead, storedAt: c.now()}
	return nil
}

func (c *InMemoryCache) Invalidate(_ context.Context, nid id.NationalID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.leads, nid)
	return nil
}
