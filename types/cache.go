package types

import (
	"time"
)

type CacheEntry struct {
	Key      string    `json:"key"`
	Value    any       `json:"value"`
	StoredAt time.Time `json:"stored_at"`
}

// Remaining returns the time left before the entry expires under ttl.
func (e *CacheEntry) Remaining(now time.Time, ttl time.Duration) time.Duration {
	left := ttl - now.Sub(e.StoredAt)
	if left < 0 {
		return 0
	}
	return left
}

// IsValid reports whether now - StoredAt < ttl.
func (e *CacheEntry) IsValid(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) < ttl
}
