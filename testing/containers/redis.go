//go:build integration

package containers

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RedisOptions configures the Redis container.
type RedisOptions struct {
	// ImageTag defaults to "7-alpine".
	ImageTag string
	// StartupTimeout defaults to 60 seconds.
	StartupTimeout time.Duration
}

func (o *RedisOptions) withDefaults() RedisOptions {
	out := RedisOptions{ImageTag: "7-alpine", StartupTimeout: 60 * time.Second}
	if o == nil {
		return out
	}
	if o.ImageTag != "" {
		out.ImageTag = o.ImageTag
	}
	if o.StartupTimeout > 0 {
		out.StartupTimeout = o.StartupTimeout
	}
	return out
}

// Redis is a running Redis container, used as the shared token store in
// integration tests.
type Redis struct {
	container *redis.RedisContainer
	host      string
	port      int
}

// StartRedis starts a Redis container. It skips t when Docker is unavailable.
func StartRedis(ctx context.Context, t *testing.T, opts *RedisOptions) (*Redis, error) {
	t.Helper()
	skipWithoutDocker(ctx, t)
	o := opts.withDefaults()

	c, err := redis.Run(ctx,
		"redis:"+o.ImageTag,
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").WithStartupTimeout(o.StartupTimeout),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start Redis container: %w", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("failed to get Redis host: %w", err)
	}
	mapped, err := c.MappedPort(ctx, "6379/tcp")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("failed to get Redis port: %w", err)
	}

	t.Logf("Redis container listening on %s:%d", host, mapped.Int())
	return &Redis{container: c, host: host, port: mapped.Int()}, nil
}

// MustStartRedis is StartRedis that fails t on error and terminates the
// container when t finishes.
func MustStartRedis(ctx context.Context, t *testing.T, opts *RedisOptions) *Redis {
	t.Helper()
	r, err := StartRedis(ctx, t, opts)
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := r.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate Redis container: %v", err)
		}
	})
	return r
}

// Host returns the container host.
func (r *Redis) Host() string { return r.host }

// Port returns the mapped Redis port.
func (r *Redis) Port() int { return r.port }

// Addr returns host:port.
func (r *Redis) Addr() string { return net.JoinHostPort(r.host, strconv.Itoa(r.port)) }

// Client opens a raw go-redis client against the container, for assertions
// that bypass the code under test. The client is closed with t.
func (r *Redis) Client(t *testing.T) *goredis.Client {
	t.Helper()
	c := goredis.NewClient(&goredis.Options{Addr: r.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// Terminate stops and removes the container.
func (r *Redis) Terminate(ctx context.Context) error {
	if r == nil || r.container == nil {
		return nil
	}
	return r.container.Terminate(ctx)
}
