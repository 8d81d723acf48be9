package cache

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/dealscout/backend/internal/domain"
)

const defaultCleanupInterval = 10 * time.Minute

// entry is a cached value with its expiry
type entry struct {
	value     interface{}
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Config holds configuration for the memory cache
type Config struct {
	CleanupInterval time.Duration
}

// MemoryCache is a thread-safe TTL cache for deal search results.
// Values are normalized through JSON on Set, so Get returns generic
// maps and slices the way a networked cache would.
type MemoryCache struct {
	entries map[string]entry
	mutex   sync.RWMutex
	stop    chan struct{}
	once    sync.Once
	now     func() time.Time
}

// NewMemoryCache creates a cache and starts its expiry sweeper
func NewMemoryCache(cfg Config) *MemoryCache {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}

	c := &MemoryCache{
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	go c.sweep(cfg.CleanupInterval)
	return c
}

// Get returns a live value or domain.ErrCacheMiss
func (c *MemoryCache) Get(ctx context.Context, key string) (interface{}, error) {
	c.mutex.RLock()
	e, ok := c.entries[key]
	c.mutex.RUnlock()

	if !ok || e.expired(c.now()) {
		return nil, domain.ErrCacheMiss
	}
	return e.value, nil
}

// Set stores value for ttl
func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var normalized interface{}
	if err := json.Unmarshal(data, &normalized); err != nil {
		return err
	}

	c.mutex.Lock()
	c.entries[key] = entry{value: normalized, expiresAt: c.now().Add(ttl)}
	c.mutex.Unlock()
	return nil
}

// Delete removes key
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	delete(c.entries, key)
	c.mutex.Unlock()
	return nil
}

// Exists reports whether key holds a live value
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mutex.RLock()
	e, ok := c.entries[key]
	c.mutex.RUnlock()

	return ok && !e.expired(c.now()), nil
}

// Size returns the number of entries, expired ones included until the next sweep
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

// Clear drops every entry
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	c.entries = make(map[string]entry)
	c.mutex.Unlock()
}

// Close stops the sweeper; the cache stays usable
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *MemoryCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if n := c.removeExpired(); n > 0 {
				log.Printf("[CACHE] Evicted %d expired entries", n)
			}
		}
	}
}

func (c *MemoryCache) removeExpired() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
