package auth

import "sync"

// TokenStore persists the current bearer token. Writing an empty token
// clears it. Implementations must be safe for concurrent use.
type TokenStore interface {
	Read() (string, bool)
	Write(token string)
}

// MemoryStore keeps the token in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

var _ TokenStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store seeded with initial, which may be empty.
func NewMemoryStore(initial string) *MemoryStore {
	return &MemoryStore{token: initial}
}

// Read returns the token and whether one is present.
func (s *MemoryStore) Read() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Write replaces the token.
func (s *MemoryStore) Write(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}
