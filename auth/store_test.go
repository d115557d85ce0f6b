package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/courier/cache"
	cachetest "github.com/gaborage/courier/cache/testing"
)

var testKey = DeriveKey([]byte("passphrase"), []byte("courier-test-salt"))

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore("")
	_, ok := s.Read()
	assert.False(t, ok)

	s.Write("abc")
	got, ok := s.Read()
	assert.True(t, ok)
	assert.Equal(t, "abc", got)

	s.Write("")
	_, ok = s.Read()
	assert.False(t, ok)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	s := NewMemoryStore("seed")
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Write(string(rune('a' + i%26)))
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Read()
		}()
	}
	wg.Wait()
	_, ok := s.Read()
	assert.True(t, ok)
}

func TestDeriveKey(t *testing.T) {
	assert.Len(t, testKey, 32)
	assert.Equal(t, testKey, DeriveKey([]byte("passphrase"), []byte("courier-test-salt")))
	assert.NotEqual(t, testKey, DeriveKey([]byte("passphrase"), []byte("other-salt-value")))
}

func TestFileStorePersistsEncrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.bin")

	s, err := NewFileStore(path, testKey, nil)
	require.NoError(t, err)
	_, ok := s.Read()
	assert.False(t, ok)

	require.NoError(t, s.Save("secret-token"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-token")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := NewFileStore(path, testKey, nil)
	require.NoError(t, err)
	got, ok := reopened.Read()
	assert.True(t, ok)
	assert.Equal(t, "secret-token", got)
}

func TestFileStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.bin")
	s, err := NewFileStore(path, testKey, nil)
	require.NoError(t, err)

	s.Write("abc")
	s.Write("")

	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	_, ok := s.Read()
	assert.False(t, ok)
}

func TestFileStoreRejectsWrongKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.bin")
	s, err := NewFileStore(path, testKey, nil)
	require.NoError(t, err)
	require.NoError(t, s.Save("abc"))

	_, err = NewFileStore(path, DeriveKey([]byte("wrong"), []byte("courier-test-salt")), nil)
	assert.Error(t, err)
}

func TestFileStoreRejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.bin")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))

	_, err := NewFileStore(path, testKey, nil)
	assert.ErrorContains(t, err, "truncated")
}

func TestFileStoreInvalidKey(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "t"), []byte("short"), nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestCacheStore(t *testing.T) {
	mock := cachetest.NewMockCache()
	s := NewCacheStore(mock, "courier:token", time.Hour, nil)

	_, ok := s.Read()
	assert.False(t, ok)

	s.Write("abc")
	got, ok := s.Read()
	assert.True(t, ok)
	assert.Equal(t, "abc", got)
	assert.True(t, mock.Has("courier:token"))

	s.Write("")
	assert.False(t, mock.Has("courier:token"))
	assert.EqualValues(t, 1, mock.OperationCount("Delete"))
}

func TestCacheStoreBackendFailures(t *testing.T) {
	boom := errors.New("boom")
	mock := cachetest.NewMockCache().WithGetFailure(boom).WithSetFailure(boom)
	s := NewCacheStore(mock, "k", 0, nil)

	assert.NotPanics(t, func() { s.Write("abc") })
	_, ok := s.Read()
	assert.False(t, ok)
}

func TestCacheStoreTimeout(t *testing.T) {
	mock := cachetest.NewMockCache().WithDelay(time.Second)
	s := NewCacheStore(mock, "k", 0, nil).WithTimeout(10 * time.Millisecond)

	start := time.Now()
	_, ok := s.Read()
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	_, err := mock.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}
