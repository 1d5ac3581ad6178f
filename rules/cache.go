package rules

import "time"

// RulesCache caches the active-rules-per-event lists served to the rule
// engine sync endpoint, so listing does not hit the database on every
// request. Implementations may be in-memory or external.
type RulesCache interface {
	// Get retrieves the cached rules for an event type, nil on miss or
	// expiry
	Get(eventType string) []*Rule

	// Set stores the rules for an event type
	Set(eventType string, rules []*Rule)

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate()

	// IsValid returns true if cache has valid data for the event type
	IsValid(eventType string) bool
}

// CacheConfig holds configuration for cache behavior.
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Set to 0 for no expiration (manual invalidation only).
	TTL time.Duration
}

// DefaultCacheConfig returns sensible defaults for rule caching.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL: 0, // No TTL - only invalidate on mutations
	}
}
