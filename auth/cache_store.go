package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gaborage/courier/cache"
	"github.com/gaborage/courier/logger"
)

// DefaultCacheStoreTimeout bounds each backend call made by CacheStore.
const DefaultCacheStoreTimeout = 2 * time.Second

// CacheStore keeps the token in a shared cache so several processes can
// reuse one credential. Backend failures read as "no token" and are logged.
type CacheStore struct {
	cache   cache.Cache
	key     string
	ttl     time.Duration
	timeout time.Duration
	log     logger.Logger
}

var _ TokenStore = (*CacheStore)(nil)

// NewCacheStore stores the token under key with the given ttl (0 keeps it
// until overwritten).
func NewCacheStore(c cache.Cache, key string, ttl time.Duration, log logger.Logger) *CacheStore {
	if log == nil {
		log = logger.Nop()
	}
	return &CacheStore{cache: c, key: key, ttl: ttl, timeout: DefaultCacheStoreTimeout, log: log}
}

// WithTimeout overrides the per-call timeout.
func (s *CacheStore) WithTimeout(d time.Duration) *CacheStore {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Read returns the token and whether one is present.
func (s *CacheStore) Read() (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	data, err := s.cache.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			s.log.Warn().Err(err).Str("key", s.key).Msg("Token cache read failed")
		}
		return "", false
	}
	return string(data), len(data) > 0
}

// Write replaces the token. An empty token deletes the key.
func (s *CacheStore) Write(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var err error
	if token == "" {
		err = s.cache.Delete(ctx, s.key)
	} else {
		err = s.cache.Set(ctx, s.key, []byte(token), s.ttl)
	}
	if err != nil {
		s.log.Error().Err(err).Str("key", s.key).Msg("Token cache write failed")
	}
}
