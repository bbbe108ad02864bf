package policy

import (
	"container/list"
	"context"
	"sync"
	"time"

	abac "github.com/fieldops/accessctl/internal/policy"
	"github.com/google/uuid"
)

// RuleCache stores the compiled active rule set of each company.
type RuleCache interface {
	// GetRules returns the cached rule set and whether it was present.
	GetRules(ctx context.Context, companyID uuid.UUID) (*abac.RuleSet, bool)
	SetRules(ctx context.Context, companyID uuid.UUID, set *abac.RuleSet)
	Invalidate(ctx context.Context, companyID uuid.UUID)
	Ping(ctx context.Context) error
}

// cacheEntry represents a single cache entry with TTL
type cacheEntry struct {
	set        *abac.RuleSet
	insertedAt time.Time
	element    *list.Element
}

func (e *cacheEntry) isExpired(ttl time.Duration) bool {
	return time.Since(e.insertedAt) > ttl
}

// PolicyCache is an in-memory LRU cache with TTL for company rule sets.
// Rule sets are immutable, so readers share the stored snapshot.
type PolicyCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*cacheEntry
	lruList *list.List
	maxSize int
	ttl     time.Duration
	hits    uint64
	misses  uint64
}

// NewPolicyCache creates a new PolicyCache with specified max size and TTL
func NewPolicyCache(maxSize int, ttl time.Duration) *PolicyCache {
	return &PolicyCache{
		entries: make(map[uuid.UUID]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// GetRules retrieves a company's rule set. Expired entries count as misses.
func (c *PolicyCache) GetRules(_ context.Context, companyID uuid.UUID) (*abac.RuleSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[companyID]
	if !exists || entry.isExpired(c.ttl) {
		c.misses++
		if exists {
			c.removeEntry(companyID)
		}
		return nil, false
	}

	c.lruList.MoveToFront(entry.element)
	c.hits++

	return entry.set, true
}

// SetRules stores a company's rule set
func (c *PolicyCache) SetRules(_ context.Context, companyID uuid.UUID, set *abac.RuleSet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[companyID]; exists {
		entry.set = set
		entry.insertedAt = time.Now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		set:        set,
		insertedAt: time.Now(),
	}
	entry.element = c.lruList.PushFront(companyID)
	c.entries[companyID] = entry
}

// Invalidate drops a company's rule set
func (c *PolicyCache) Invalidate(_ context.Context, companyID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntry(companyID)
}

// Ping always succeeds for the in-process cache
func (c *PolicyCache) Ping(context.Context) error {
	return nil
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns cache statistics
func (c *PolicyCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// removeEntry must be called with lock held
func (c *PolicyCache) removeEntry(companyID uuid.UUID) {
	if entry, exists := c.entries[companyID]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, companyID)
	}
}

// evictLRU must be called with lock held
func (c *PolicyCache) evictLRU() {
	back := c.lruList.Back()
	if back == nil {
		return
	}
	companyID := back.Value.(uuid.UUID)
	c.lruList.Remove(back)
	delete(c.entries, companyID)
}

// CleanupExpired removes all expired entries and returns how many were dropped
func (c *PolicyCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for companyID, entry := range c.entries {
		if entry.isExpired(c.ttl) {
			c.removeEntry(companyID)
			removed++
		}
	}
	return removed
}

// StartCleanupWorker periodically drops expired entries until stopCh is closed
func (c *PolicyCache) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-stopCh:
			return
		}
	}
}
