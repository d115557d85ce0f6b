package testing

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gaborage/courier/cache"
)

// MockCache is a thread-safe in-memory cache.Cache with configurable
// failures and delays.
type MockCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	closed  atomic.Bool

	delay       time.Duration
	getError    error
	setError    error
	deleteError error
	healthError error

	getCalls    atomic.Int64
	setCalls    atomic.Int64
	deleteCalls atomic.Int64
	healthCalls atomic.Int64
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiration
}

var _ cache.Cache = (*MockCache)(nil)

// NewMockCache creates an empty MockCache.
func NewMockCache() *MockCache {
	return &MockCache{entries: make(map[string]cacheEntry)}
}

// WithDelay delays every operation, honouring context cancellation.
func (m *MockCache) WithDelay(delay time.Duration) *MockCache {
	m.delay = delay
	return m
}

// WithGetFailure configures Get operations to return an error.
func (m *MockCache) WithGetFailure(err error) *MockCache {
	m.getError = err
	return m
}

// WithSetFailure configures Set operations to return an error.
func (m *MockCache) WithSetFailure(err error) *MockCache {
	m.setError = err
	return m
}

// WithDeleteFailure configures Delete operations to return an error.
func (m *MockCache) WithDeleteFailure(err error) *MockCache {
	m.deleteError = err
	return m
}

// WithHealthFailure configures Health operations to return an error.
func (m *MockCache) WithHealthFailure(err error) *MockCache {
	m.healthError = err
	return m
}

func (m *MockCache) wait(ctx context.Context) error {
	if m.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(m.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get retrieves a value from the cache.
func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.getCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.closed.Load() {
		return nil, cache.ErrClosed
	}
	if m.getError != nil {
		return nil, m.getError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, cache.ErrNotFound
	}
	return append([]byte(nil), entry.value...), nil
}

// Set stores a value in the cache with TTL.
func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.setCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return err
	}
	if m.closed.Load() {
		return cache.ErrClosed
	}
	if m.setError != nil {
		return m.setError
	}
	if ttl < 0 {
		return cache.ErrInvalidTTL
	}

	entry := cacheEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

// Delete removes a key. Missing keys are not an error.
func (m *MockCache) Delete(ctx context.Context, key string) error {
	m.deleteCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return err
	}
	if m.closed.Load() {
		return cache.ErrClosed
	}
	if m.deleteError != nil {
		return m.deleteError
	}

	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Health reports the configured health failure, if any.
func (m *MockCache) Health(ctx context.Context) error {
	m.healthCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return err
	}
	if m.closed.Load() {
		return cache.ErrClosed
	}
	return m.healthError
}

// Close marks the cache closed. A second call returns cache.ErrClosed.
func (m *MockCache) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return cache.ErrClosed
	}
	return nil
}

// OperationCount returns how many times the named operation ran:
// "Get", "Set", "Delete" or "Health".
func (m *MockCache) OperationCount(operation string) int64 {
	switch operation {
	case "Get":
		return m.getCalls.Load()
	case "Set":
		return m.setCalls.Load()
	case "Delete":
		return m.deleteCalls.Load()
	case "Health":
		return m.healthCalls.Load()
	default:
		return 0
	}
}

// Has reports whether key is present, ignoring expiry.
func (m *MockCache) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

// AllKeys returns the stored keys in sorted order.
func (m *MockCache) AllKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsClosed reports whether Close has been called.
func (m *MockCache) IsClosed() bool {
	return m.closed.Load()
}
