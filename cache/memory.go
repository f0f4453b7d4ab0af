package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/saiset-co/estate-client/types"
)

// MemoryStore maps keys to decoded payloads. Entries expire lazily: an entry
// older than ttl is dropped when it is read, never by a background sweep.
type MemoryStore struct {
	ttl  time.Duration
	now  func() time.Time
	data map[string]*types.CacheEntry
	mu   sync.RWMutex
}

func NewMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}

	return &MemoryStore{
		ttl:  ttl,
		now:  now,
		data: make(map[string]*types.CacheEntry),
	}
}

func (m *MemoryStore) Get(key string) (interface{}, bool) {
	now := m.now()

	m.mu.RLock()
	entry, exists := m.data[key]
	if !exists {
		m.mu.RUnlock()
		return nil, false
	}

	if !entry.IsValid(now, m.ttl) {
		m.mu.RUnlock()
		m.mu.Lock()
		if entry, exists := m.data[key]; exists && !entry.IsValid(now, m.ttl) {
			delete(m.data, key)
		}
		m.mu.Unlock()
		return nil, false
	}

	value := entry.Value
	m.mu.RUnlock()

	return value, true
}

// Set writes or overwrites key with StoredAt set to now.
func (m *MemoryStore) Set(key string, value interface{}) error {
	if key == "" {
		return types.ErrCacheKeyEmpty
	}

	entry := &types.CacheEntry{
		Key:      key,
		Value:    value,
		StoredAt: m.now(),
	}

	m.mu.Lock()
	m.data[key] = entry
	m.mu.Unlock()

	return nil
}

// Peek returns a copy of the entry without expiring it.
func (m *MemoryStore) Peek(key string) (types.CacheEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.data[key]
	if !exists {
		return types.CacheEntry{}, false
	}
	return *entry, true
}

// Invalidate removes every key containing pattern, or everything when pattern is empty.
// It returns the number of removed entries.
func (m *MemoryStore) Invalidate(pattern string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pattern == "" {
		removed := len(m.data)
		m.data = make(map[string]*types.CacheEntry)
		return removed
	}

	removed := 0
	for key := range m.data {
		if strings.Contains(key, pattern) {
			delete(m.data, key)
			removed++
		}
	}

	return removed
}

func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	return keys
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *MemoryStore) TTL() time.Duration {
	return m.ttl
}

func (m *MemoryStore) Now() time.Time {
	return m.now()
}
