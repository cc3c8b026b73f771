package types

import (
	"time"
)

type CacheManager interface {
	LifecycleManager
	Get(key string) (*CachedResponse, bool)
	Set(key string, response *CachedResponse, ttl time.Duration) error
	Delete(key string) error
	InvalidatePrefix(prefix string) error
	Sweep()
	Stats() CacheStats
}

// CachedResponse is a successful response payload held by the cache.
// Entries are owned by the cache and never mutated after Set.
type CachedResponse struct {
	Status   int       `json:"status"`
	Body     []byte    `json:"body"`
	StoredAt time.Time `json:"stored_at"`
}

type CacheStats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
}
