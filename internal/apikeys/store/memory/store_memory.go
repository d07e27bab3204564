package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"deeptrack/internal/apikeys/models"
)

type entry struct {
	keys      []models.APIKey
	expiresAt time.Time
}

// InMemoryCache is a process-local key-list cache.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func New() *InMemoryCache {
	return &InMemoryCache{entries: make(map[string]entry), now: time.Now}
}

func (c *InMemoryCache) Get(_ context.Context, companyID string) ([]models.APIKey, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[companyID]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return slices.Clone(e.keys), true, nil
}

func (c *InMemoryCache) Set(_ context.Context, companyID string, keys []models.APIKey, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[companyID] = entry{keys: slices.Clone(keys), expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *InMemoryCache) Invalidate(_ context.Context, companyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, companyID)
	return nil
}
