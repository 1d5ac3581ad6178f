package rules

import (
	"sync"
	"time"
)

type cacheEntry struct {
	rules    []*Rule
	cachedAt time.Time
}

// InMemoryRulesCache is a simple in-memory implementation of RulesCache.
// Thread-safe for concurrent access.
type InMemoryRulesCache struct {
	entries map[string]cacheEntry
	config  CacheConfig
	mu      sync.RWMutex
}

// NewInMemoryRulesCache creates a new in-memory rules cache.
func NewInMemoryRulesCache(config CacheConfig) *InMemoryRulesCache {
	return &InMemoryRulesCache{
		entries: make(map[string]cacheEntry),
		config:  config,
	}
}

// Get retrieves the cached rules for an event type.
// Returns nil on cache miss or expiry.
func (c *InMemoryRulesCache) Get(eventType string) []*Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[eventType]
	if !ok {
		return nil
	}
	if c.config.TTL > 0 && time.Since(entry.cachedAt) > c.config.TTL {
		return nil
	}

	// Return copy to prevent external modifications
	rulesCopy := make([]*Rule, len(entry.rules))
	copy(rulesCopy, entry.rules)
	return rulesCopy
}

// Set stores the rules for an event type.
func (c *InMemoryRulesCache) Set(eventType string, rules []*Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Store copy to prevent external modifications
	rulesCopy := make([]*Rule, len(rules))
	copy(rulesCopy, rules)
	c.entries[eventType] = cacheEntry{rules: rulesCopy, cachedAt: time.Now()}
}

// Invalidate clears every cached event type.
func (c *InMemoryRulesCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
}

// IsValid returns true if the cache holds unexpired data for the event
// type.
func (c *InMemoryRulesCache) IsValid(eventType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[eventType]
	if !ok {
		return false
	}
	if c.config.TTL > 0 {
		return time.Since(entry.cachedAt) <= c.config.TTL
	}
	return true
}
