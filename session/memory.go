// Package session holds the bearer token and role read by the outbound client.
package session

import (
	"sync"

	"github.com/saiset-co/estate-client/types"
)

type MemoryStore struct {
	mu    sync.RWMutex
	token string
	role  string
}

var _ types.SessionStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// FromConfig seeds a store from the session section of the config. A nil config yields an empty store.
func FromConfig(config *types.SessionConfig) *MemoryStore {
	store := NewMemoryStore()
	if config != nil {
		store.SetToken(config.Token)
		store.SetRole(config.Role)
	}
	return store
}

func (s *MemoryStore) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *MemoryStore) Role() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role, s.role != ""
}

func (s *MemoryStore) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *MemoryStore) SetRole(role string) {
	s.mu.Lock()
	s.role = role
	s.mu.Unlock()
}

// Clear drops both the token and the role, as on logout.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.token = ""
	s.role = ""
	s.mu.Unlock()
}
