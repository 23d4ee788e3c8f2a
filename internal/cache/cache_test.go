// SPDX-License-Identifier: MIT

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheGetSet(t *testing.T) {
	c := NewMemoryCache(10, 0)

	_, found := c.Get("missing")
	assert.False(t, found)

	c.Set("k", "v", time.Minute)
	got, found := c.Get("k")
	require.True(t, found)
	assert.Equal(t, "v", got)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, 1, stats.CurrentSize)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(10, 0)
	c.Set("short", "v", 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)

	_, found := c.Get("short")
	assert.False(t, found, "expired entry must not be returned")
	assert.Equal(t, 0, c.Stats().CurrentSize, "expired entry is dropped on read")
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	c := NewMemoryCache(3, 0)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Set("c", 3, time.Minute)

	// Touch "a" so "b" is the least recently used.
	_, found := c.Get("a")
	require.True(t, found)

	c.Set("d", 4, time.Minute)

	_, found = c.Get("b")
	assert.False(t, found, "least recently used entry is evicted")
	for _, k := range []string{"a", "c", "d"} {
		_, found := c.Get(k)
		assert.True(t, found, "entry %q must survive", k)
	}
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestMemoryCacheOverwriteKeepsSize(t *testing.T) {
	c := NewMemoryCache(2, 0)
	c.Set("k", 1, time.Minute)
	c.Set("k", 2, time.Minute)

	got, found := c.Get("k")
	require.True(t, found)
	assert.Equal(t, 2, got)
	assert.Equal(t, 1, c.Stats().CurrentSize)
}

func TestMemoryCacheDeleteAndClear(t *testing.T) {
	c := NewMemoryCache(10, 0)
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	c.Delete("a")
	_, found := c.Get("a")
	assert.False(t, found)

	c.Clear()
	_, found = c.Get("b")
	assert.False(t, found)
	assert.Equal(t, 0, c.Stats().CurrentSize)
}

func TestMemoryCacheJanitorRemovesExpired(t *testing.T) {
	c := NewMemoryCache(10, 10*time.Millisecond)
	defer c.(interface{ Stop() }).Stop()

	c.Set("a", 1, 5*time.Millisecond)
	c.Set("b", 2, time.Minute)

	assert.Eventually(t, func() bool {
		return c.Stats().CurrentSize == 1
	}, time.Second, 10*time.Millisecond, "janitor should sweep the expired entry")

	_, found := c.Get("b")
	assert.True(t, found)
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	c := NewMemoryCache(100, 0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := fmt.Sprintf("k%d", j%20)
				c.Set(key, n, time.Minute)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Stats().CurrentSize, 20)
}

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := NewRedisCache(RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, _ := newTestRedisCache(t)

	c.Set("search:abc", []byte(`{"results":[]}`), time.Minute)

	got, found := c.Get("search:abc")
	require.True(t, found)
	assert.Equal(t, []byte(`{"results":[]}`), got)
}

func TestRedisCacheMiss(t *testing.T) {
	c, _ := newTestRedisCache(t)

	_, found := c.Get("nope")
	assert.False(t, found)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Misses)
}

func TestRedisCacheTTL(t *testing.T) {
	c, mr := newTestRedisCache(t)

	c.Set("k", []byte("v"), time.Minute)
	mr.FastForward(2 * time.Minute)

	_, found := c.Get("k")
	assert.False(t, found, "entry must expire with its TTL")
}

func TestRedisCacheMarshalsNonBytes(t *testing.T) {
	c, _ := newTestRedisCache(t)

	c.Set("obj", map[string]int{"n": 3}, time.Minute)

	got, found := c.Get("obj")
	require.True(t, found)
	assert.JSONEq(t, `{"n":3}`, string(got.([]byte)))
}

func TestRedisCacheDeleteAndClear(t *testing.T) {
	c, _ := newTestRedisCache(t)

	c.Set("a", []byte("1"), time.Minute)
	c.Set("b", []byte("2"), time.Minute)

	c.Delete("a")
	_, found := c.Get("a")
	assert.False(t, found)

	c.Clear()
	_, found = c.Get("b")
	assert.False(t, found)
	assert.Equal(t, 0, c.Stats().CurrentSize)
}

func TestRedisCacheConnectFailure(t *testing.T) {
	_, err := NewRedisCache(RedisConfig{Addr: "127.0.0.1:1"}, zerolog.Nop())
	assert.Error(t, err)
}
