// Package cache provides caching implementations for FuelGuard.
package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
)

// LRUCache is a thread-safe LRU cache with TTL support.
// Used as the single-node cache and as L1 in two-phase caching.
type LRUCache struct {
	mu       sync.RWMutex
	maxSize  int
	items    map[string]*list.Element
	order    *list.List
	counters map[string]*counterEntry
}

type cacheEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

type counterEntry struct {
	count     int64
	expiresAt time.Time
}

// NewLRUCache creates a new LRU cache with the specified max size.
func NewLRUCache(maxSize int) *LRUCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &LRUCache{
		maxSize:  maxSize,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		counters: make(map[string]*counterEntry),
	}
}

// Get retrieves a value from cache.
func (c *LRUCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	fullKey := c.makeKey(tenantID, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[fullKey]
	if !ok {
		return nil, nil
	}

	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		return nil, nil
	}

	c.order.MoveToFront(elem)
	return entry.value, nil
}

// Set stores a value in cache with TTL.
func (c *LRUCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	fullKey := c.makeKey(tenantID, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[fullKey]; ok {
		c.order.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.expiresAt = time.Now().Add(ttl)
		return nil
	}

	entry := &cacheEntry{
		key:       fullKey,
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	elem := c.order.PushFront(entry)
	c.items[fullKey] = elem

	for c.order.Len() > c.maxSize {
		c.removeOldest()
	}

	return nil
}

// Delete removes a value from cache.
func (c *LRUCache) Delete(ctx context.Context, tenantID string, key string) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	fullKey := c.makeKey(tenantID, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[fullKey]; ok {
		c.removeElement(elem)
	}
	return nil
}

// GetSnapshot retrieves a cached reference-data snapshot.
func (c *LRUCache) GetSnapshot(ctx context.Context, tenantID string) (*domain.RefSnapshot, error) {
	data, err := c.Get(ctx, tenantID, snapshotKey)
	if err != nil || data == nil {
		return nil, err
	}

	var snap domain.RefSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SetSnapshot caches a reference-data snapshot.
func (c *LRUCache) SetSnapshot(ctx context.Context, tenantID string, snap *domain.RefSnapshot, ttl time.Duration) error {
	bytes, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.Set(ctx, tenantID, snapshotKey, bytes, ttl)
}

// IncrementCounter atomically increments a counter.
func (c *LRUCache) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}

	fullKey := c.makeKey(tenantID, "counter:"+key)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	entry, ok := c.counters[fullKey]

	if !ok || now.After(entry.expiresAt) {
		c.counters[fullKey] = &counterEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
		return 1, nil
	}

	entry.count++
	return entry.count, nil
}

// Ping checks cache health.
func (c *LRUCache) Ping(ctx context.Context) error {
	return nil
}

// Close cleans up the cache.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order = list.New()
	c.counters = make(map[string]*counterEntry)
	return nil
}

// Stats returns cache statistics.
func (c *LRUCache) Stats() (size int, capacity int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len(), c.maxSize
}

func (c *LRUCache) makeKey(tenantID, key string) string {
	return tenantID + ":" + key
}

func (c *LRUCache) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	entry := elem.Value.(*cacheEntry)
	delete(c.items, entry.key)
}

func (c *LRUCache) removeOldest() {
	elem := c.order.Back()
	if elem != nil {
		c.removeElement(elem)
	}
}
