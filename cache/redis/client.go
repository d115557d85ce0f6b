// Package redis implements cache.Cache on top of go-redis.
package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gaborage/courier/cache"
)

// pingTimeout bounds the connectivity check performed by NewClient.
const pingTimeout = 5 * time.Second

// Client implements the cache.Cache interface using Redis as the backend.
type Client struct {
	client *redis.Client
	config Config
	closed atomic.Bool
}

var _ cache.Cache = (*Client)(nil)

// NewClient validates cfg, connects and pings the server.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, cache.NewConfigError("redis", "configuration is required", nil)
	}
	resolved := cfg.withDefaults()
	if err := resolved.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         resolved.Address(),
		Password:     resolved.Password,
		DB:           resolved.Database,
		PoolSize:     resolved.PoolSize,
		DialTimeout:  resolved.DialTimeout,
		ReadTimeout:  resolved.ReadTimeout,
		WriteTimeout: resolved.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, cache.NewConnectionError("ping", resolved.Address(), err)
	}

	return &Client{client: client, config: resolved}, nil
}

func (c *Client) key(k string) string {
	return c.config.KeyPrefix + k
}

// Get returns cache.ErrNotFound if the key doesn't exist.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, cache.ErrClosed
	}

	result, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrNotFound
		}
		return nil, cache.NewOperationError("get", key, err)
	}
	return result, nil
}

// Set stores value under key. A ttl of 0 means no expiration.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}
	if ttl < 0 {
		return cache.ErrInvalidTTL
	}

	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return cache.NewOperationError("set", key, err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}

	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return cache.NewOperationError("delete", key, err)
	}
	return nil
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}

	if err := c.client.Ping(ctx).Err(); err != nil {
		return cache.NewConnectionError("ping", c.config.Address(), err)
	}
	return nil
}

// Close releases the connection pool. A second call returns cache.ErrClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return cache.ErrClosed
	}
	return c.client.Close()
}
