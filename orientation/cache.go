// Package orientation resolves carousel item orientations from image
// metadata and caches the results.
package orientation

import (
	"context"
	"sync"
	"time"

	"carousel3d/carousel"
)

// Entry is a cached measurement of one image reference.
type Entry struct {
	Orientation carousel.Orientation
	Width       int
	Height      int
	UpdatedAt   time.Time
}

// Cache stores resolved orientations keyed by image reference.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
}

// MemoryCache is an in-process Cache. The zero value is ready to use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]Entry)
	}
	c.entries[key] = e
	return nil
}

// Len reports the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
