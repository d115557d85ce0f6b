package auth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/sync/errgroup"

	"github.com/gaborage/courier/internal/tracking"
)

const (
	testOldToken = "T0"
	testNewToken = "T1"
)

// gatedAuthenticator blocks every call until release is closed.
type gatedAuthenticator struct {
	calls   atomic.Int32
	oldSeen atomic.Value
	release chan struct{}
	token   string
	err     error
}

func newGatedAuthenticator(token string, err error) *gatedAuthenticator {
	return &gatedAuthenticator{release: make(chan struct{}), token: token, err: err}
}

func (a *gatedAuthenticator) Refresh(ctx context.Context, oldToken string) (string, error) {
	a.calls.Add(1)
	a.oldSeen.Store(oldToken)
	select {
	case <-a.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return a.token, a.err
}

func waitAll(t *testing.T, c *Coordinator, n int, release func()) ([]string, []error) {
	t.Helper()

	tokens := make([]string, n)
	errs := make([]error, n)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			tokens[i], errs[i] = c.Refresh(context.Background()).Wait(context.Background())
			return nil
		})
	}

	require.Eventually(t, func() bool { return c.Waiting() == n }, 2*time.Second, time.Millisecond)
	assert.True(t, c.InFlight())
	release()
	require.NoError(t, g.Wait())
	return tokens, errs
}

func TestCoordinatorSingleRefreshForConcurrentCallers(t *testing.T) {
	store := NewMemoryStore(testOldToken)
	authn := newGatedAuthenticator(testNewToken, nil)
	c := NewCoordinator(store, authn)

	const n = 25
	tokens, errs := waitAll(t, c, n, func() { close(authn.release) })

	for i := range n {
		assert.NoError(t, errs[i])
		assert.Equal(t, testNewToken, tokens[i])
	}
	assert.EqualValues(t, 1, authn.calls.Load())
	assert.EqualValues(t, 1, c.Refreshes())
	assert.Equal(t, testOldToken, authn.oldSeen.Load())

	got, ok := store.Read()
	assert.True(t, ok)
	assert.Equal(t, testNewToken, got)
	assert.False(t, c.InFlight())
	assert.Zero(t, c.Waiting())
}

func TestCoordinatorFailureResolvesEveryWaiter(t *testing.T) {
	store := NewMemoryStore(testOldToken)
	denied := errors.New("invalid_grant")
	authn := newGatedAuthenticator("", denied)
	c := NewCoordinator(store, authn)

	const n = 10
	tokens, errs := waitAll(t, c, n, func() { close(authn.release) })

	for i := range n {
		assert.ErrorIs(t, errs[i], denied)
		assert.Empty(t, tokens[i])
	}

	got, _ := store.Read()
	assert.Equal(t, testOldToken, got, "store must not change on failure")
	assert.False(t, c.InFlight())
	assert.Zero(t, c.Waiting())
}

func TestCoordinatorEmptyTokenIsFailure(t *testing.T) {
	c := NewCoordinator(NewMemoryStore(""), AuthenticatorFunc(func(context.Context, string) (string, error) {
		return "", nil
	}))

	_, err := c.Refresh(context.Background()).Wait(context.Background())
	assert.ErrorIs(t, err, ErrEmptyToken)
}

func TestCoordinatorTimeout(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	c := NewCoordinator(NewMemoryStore(""), AuthenticatorFunc(func(context.Context, string) (string, error) {
		<-block
		return testNewToken, nil
	}), WithRefreshTimeout(20*time.Millisecond))

	_, err := c.Refresh(context.Background()).Wait(context.Background())
	assert.ErrorIs(t, err, ErrRefreshTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, c.InFlight())
}

func TestCoordinatorPanicIsFailure(t *testing.T) {
	c := NewCoordinator(NewMemoryStore(""), AuthenticatorFunc(func(context.Context, string) (string, error) {
		panic("boom")
	}))

	_, err := c.Refresh(context.Background()).Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestCoordinatorRefreshDetachedFromCaller(t *testing.T) {
	c := NewCoordinator(NewMemoryStore(""), AuthenticatorFunc(func(ctx context.Context, _ string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return testNewToken, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := c.Refresh(ctx)
	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled, "waiting honours the caller context")

	token, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testNewToken, token)
}

func TestCoordinatorSequentialRefreshes(t *testing.T) {
	var n atomic.Int32
	c := NewCoordinator(NewMemoryStore(testOldToken), AuthenticatorFunc(func(_ context.Context, old string) (string, error) {
		n.Add(1)
		return old + "+", nil
	}))

	first, err := c.Refresh(context.Background()).Wait(context.Background())
	require.NoError(t, err)
	second, err := c.Refresh(context.Background()).Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "T0+", first)
	assert.Equal(t, "T0++", second)
	assert.EqualValues(t, 2, c.Refreshes())
}

func TestCoordinatorRefreshIfStale(t *testing.T) {
	t.Run("store_already_rotated", func(t *testing.T) {
		authn := newGatedAuthenticator("unused", nil)
		c := NewCoordinator(NewMemoryStore(testNewToken), authn)

		p := c.RefreshIfStale(context.Background(), testOldToken)
		select {
		case <-p.Done():
		default:
			t.Fatal("pending should resolve immediately")
		}
		token, err := p.Result()
		require.NoError(t, err)
		assert.Equal(t, testNewToken, token)
		assert.Zero(t, c.Refreshes())
	})

	t.Run("same_token_refreshes", func(t *testing.T) {
		c := NewCoordinator(NewMemoryStore(testOldToken), AuthenticatorFunc(func(context.Context, string) (string, error) {
			return testNewToken, nil
		}))

		token, err := c.RefreshIfStale(context.Background(), testOldToken).Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, testNewToken, token)
		assert.EqualValues(t, 1, c.Refreshes())
	})

	t.Run("joins_in_flight", func(t *testing.T) {
		authn := newGatedAuthenticator("T2", nil)
		store := NewMemoryStore(testOldToken)
		c := NewCoordinator(store, authn)

		first := c.Refresh(context.Background())
		require.Eventually(t, c.InFlight, time.Second, time.Millisecond)

		// A different stored token does not short-circuit while a refresh runs.
		store.Write(testNewToken)
		second := c.RefreshIfStale(context.Background(), testOldToken)
		assert.Equal(t, 2, c.Waiting())

		close(authn.release)
		t1, _ := first.Wait(context.Background())
		t2, _ := second.Wait(context.Background())
		assert.Equal(t, "T2", t1)
		assert.Equal(t, "T2", t2)
		assert.EqualValues(t, 1, c.Refreshes())
	})
}

func TestCoordinatorRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	c := NewCoordinator(NewMemoryStore(""), AuthenticatorFunc(func(context.Context, string) (string, error) {
		return testNewToken, nil
	}), WithMeterProvider(mp))

	_, err := c.Refresh(context.Background()).Wait(context.Background())
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == tracking.MetricRefreshes {
				found = true
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				require.Len(t, sum.DataPoints, 1)
				assert.EqualValues(t, 1, sum.DataPoints[0].Value)
			}
		}
	}
	assert.True(t, found)
}
