package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	require.NoError(t, c.Set(ctx, "key", []byte("value"), time.Hour))
	data, hit, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, data)
	assert.NoError(t, c.Delete(ctx, "key"))
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(filepath.Join(t.TempDir(), "nested", "cache"))
	require.NoError(t, err)

	_, hit, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "k1", []byte("one"), 0))
	require.NoError(t, c.Set(ctx, "k2", []byte("two"), time.Hour))
	data, hit, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("one"), data)

	entries, size, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, entries)
	assert.Positive(t, size)

	require.NoError(t, c.Delete(ctx, "k1"))
	require.NoError(t, c.Delete(ctx, "k1"))
	_, hit, _ = c.Get(ctx, "k1")
	assert.False(t, hit)

	require.NoError(t, c.Clear())
	entries, _, err = c.Stats()
	require.NoError(t, err)
	assert.Zero(t, entries)
}

func TestFileCacheExpiredAndCorrupt(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "short", []byte("x"), time.Nanosecond))
	time.Sleep(2 * time.Millisecond)
	_, hit, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, hit)
	_, statErr := os.Stat(c.path("short"))
	assert.True(t, os.IsNotExist(statErr), "expired entry is removed")

	p := c.path("bad")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte{0xc1, 0xff}, 0o644))
	_, hit, err = c.Get(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryCache(2)
	require.NoError(t, err)

	buf := []byte("a")
	require.NoError(t, c.Set(ctx, "a", buf, 0))
	buf[0] = 'z'
	data, hit, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, []byte("a"), data, "stored data is a copy")

	require.NoError(t, c.Set(ctx, "b", []byte("b"), 0))
	require.NoError(t, c.Set(ctx, "c", []byte("c"), 0))
	_, hit, _ = c.Get(ctx, "a")
	assert.False(t, hit, "least recently used entry is evicted")
	_, hit, _ = c.Get(ctx, "b")
	assert.True(t, hit)
	assert.Equal(t, 2, c.Len())

	require.NoError(t, c.Close())
	assert.Zero(t, c.Len())
}

func TestMemoryCacheTTL(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryCache(0)
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	_, hit, _ := c.Get(ctx, "k")
	assert.True(t, hit)

	now = now.Add(2 * time.Minute)
	_, hit, _ = c.Get(ctx, "k")
	assert.False(t, hit)
	assert.Zero(t, c.Len())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	c, err := Open(ctx, Settings{})
	require.NoError(t, err)
	assert.IsType(t, &NullCache{}, c)

	c, err = Open(ctx, Settings{Backend: "FILE", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileCache{}, c)

	c, err = Open(ctx, Settings{Backend: BackendMemory, Entries: 8})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	_, err = Open(ctx, Settings{Backend: BackendRedis, RedisURL: "http://not-redis"})
	assert.Error(t, err)

	_, err = Open(ctx, Settings{Backend: "memcached"})
	assert.Error(t, err)
}

func TestHash(t *testing.T) {
	assert.Equal(t, Hash([]byte("hello")), Hash([]byte("hello")))
	assert.NotEqual(t, Hash([]byte("hello")), Hash([]byte("world")))
	assert.Len(t, Hash([]byte("hello")), 64)
}

func TestKeyers(t *testing.T) {
	k := NewDefaultKeyer()
	r1 := k.ResultKey("abc", ResultKeyOpts{GraphType: "flowchart@v1"})
	r2 := k.ResultKey("abc", ResultKeyOpts{GraphType: "flowchart@v2"})
	assert.NotEqual(t, r1, r2)
	assert.Equal(t, r1, k.ResultKey("abc", ResultKeyOpts{GraphType: "flowchart@v1"}))
	assert.Regexp(t, `^result:[0-9a-f]{64}$`, r1)

	a1 := k.ArtifactKey("h", ArtifactKeyOpts{Format: "svg"})
	a2 := k.ArtifactKey("h", ArtifactKeyOpts{Format: "svg", Detailed: true})
	assert.NotEqual(t, a1, a2)

	scoped := NewScopedKeyer(nil, "ws:1:")
	assert.Equal(t, "ws:1:"+r1, scoped.ResultKey("abc", ResultKeyOpts{GraphType: "flowchart@v1"}))
	assert.Equal(t, "ws:1:"+a1, scoped.ArtifactKey("h", ArtifactKeyOpts{Format: "svg"}))
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()
	transient := Retryable(ErrBackend)

	calls := 0
	err := RetryWithBackoff(ctx, 3, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return transient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	permanent := errors.New("permanent")
	err = RetryWithBackoff(ctx, 3, time.Millisecond, func() error {
		calls++
		return permanent
	})
	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = RetryWithBackoff(ctx, 3, time.Millisecond, func() error {
		calls++
		return transient
	})
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, ErrBackend)
	assert.Equal(t, 3, calls)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = RetryWithBackoff(cancelled, 3, time.Hour, func() error { return transient })
	assert.Equal(t, context.Canceled, err)

	assert.Nil(t, Retryable(nil))
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))
	plain := errors.New("WRONGTYPE")
	assert.Equal(t, plain, classify(plain))

	netErr := &timeoutError{}
	err := classify(netErr)
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, ErrBackend)
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
