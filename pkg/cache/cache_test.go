package cache

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navimind/navimind/pkg/config"
)

func testStrategy() config.CacheStrategy {
	return config.CacheStrategy{
		Enabled:              true,
		MaxSize:              4,
		TTLMs:                300000,
		CompressionEnabled:   true,
		CompressionThreshold: 1024,
	}
}

func newTestCache(s config.CacheStrategy) *ContentCache {
	return New(s, slog.New(slog.DiscardHandler))
}

func TestSetGet(t *testing.T) {
	c := newTestCache(testStrategy())

	require.NoError(t, c.Set(TierDOM, "page1", []byte("<html>hi</html>")))

	got, ok := c.Get(TierDOM, "page1")
	require.True(t, ok)
	assert.Equal(t, []byte("<html>hi</html>"), got)

	_, ok = c.Get(TierAPI, "page1")
	assert.False(t, ok, "tiers are independent namespaces")
}

func TestLRUEviction(t *testing.T) {
	c := newTestCache(testStrategy())

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Set(TierDOM, fmt.Sprintf("k%d", i), []byte("v")))
	}

	_, ok := c.Get(TierDOM, "k0")
	assert.False(t, ok, "oldest entry evicted at capacity 4")
	_, ok = c.Get(TierDOM, "k4")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Stats().Evictions)
}

func TestLRUEviction_RecencyOrder(t *testing.T) {
	c := newTestCache(testStrategy())

	for i := 0; i < 4; i++ {
		require.NoError(t, c.Set(TierDOM, fmt.Sprintf("k%d", i), []byte("v")))
	}
	// Touch k0 so k1 becomes the eviction candidate.
	_, ok := c.Get(TierDOM, "k0")
	require.True(t, ok)

	require.NoError(t, c.Set(TierDOM, "k4", []byte("v")))

	_, ok = c.Get(TierDOM, "k0")
	assert.True(t, ok)
	_, ok = c.Get(TierDOM, "k1")
	assert.False(t, ok)
}

func TestScreenshotTierHalfBudget(t *testing.T) {
	c := newTestCache(testStrategy()) // maxSize 4, screenshots get 2

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Set(TierScreenshot, fmt.Sprintf("s%d", i), []byte("img")))
	}

	_, ok := c.Get(TierScreenshot, "s0")
	assert.False(t, ok)
	_, ok = c.Get(TierScreenshot, "s2")
	assert.True(t, ok)
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(testStrategy())
	require.NoError(t, c.Set(TierAPI, "k", []byte("v")))

	base := time.Now()
	// Age exactly equal to the TTL counts as expired.
	c.tiers[TierAPI].now = func() time.Time { return base.Add(300000 * time.Millisecond) }

	_, ok := c.Get(TierAPI, "k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Stats().Misses)
	assert.Equal(t, 1, c.Stats().Evictions, "TTL expiry counts as an eviction")
}

func TestCompressionRoundTrip(t *testing.T) {
	c := newTestCache(testStrategy())
	big := bytes.Repeat([]byte("abcdefgh"), 1000) // 8000 bytes, compressible

	require.NoError(t, c.Set(TierDOM, "big", big))

	got, ok := c.Get(TierDOM, "big")
	require.True(t, ok)
	assert.Equal(t, big, got)
	assert.Less(t, c.Stats().TotalSize, len(big), "stored size reflects compression")
}

func TestCompressionSkippedBelowThreshold(t *testing.T) {
	c := newTestCache(testStrategy())
	small := []byte("tiny")

	require.NoError(t, c.Set(TierDOM, "small", small))

	assert.Equal(t, len(small), c.Stats().TotalSize)
}

func TestDisabledCache(t *testing.T) {
	s := testStrategy()
	s.Enabled = false
	c := newTestCache(s)

	require.NoError(t, c.Set(TierDOM, "k", []byte("v")))

	_, ok := c.Get(TierDOM, "k")
	assert.False(t, ok)
	assert.Equal(t, Stats{}, c.Stats())
}

func TestUpdateURL_SameHostClearsDOMOnly(t *testing.T) {
	c := newTestCache(testStrategy())
	c.UpdateURL("https://shop.example.com/list")
	require.NoError(t, c.Set(TierDOM, "dom1", []byte("d")))
	require.NoError(t, c.Set(TierAPI, "api1", []byte("a")))
	require.NoError(t, c.Set(TierScreenshot, "shot1", []byte("s")))

	c.UpdateURL("https://shop.example.com/item/42")

	_, ok := c.Get(TierDOM, "dom1")
	assert.False(t, ok)
	_, ok = c.Get(TierAPI, "api1")
	assert.True(t, ok)
	_, ok = c.Get(TierScreenshot, "shot1")
	assert.True(t, ok)
}

func TestUpdateURL_CrossHostClearsAll(t *testing.T) {
	c := newTestCache(testStrategy())
	c.UpdateURL("https://a.example.com/")
	require.NoError(t, c.Set(TierDOM, "dom1", []byte("d")))
	require.NoError(t, c.Set(TierAPI, "api1", []byte("a")))

	c.UpdateURL("https://b.example.org/")

	_, ok := c.Get(TierDOM, "dom1")
	assert.False(t, ok)
	_, ok = c.Get(TierAPI, "api1")
	assert.False(t, ok)
}

func TestUpdateURL_SchemelessCrossHostClearsAll(t *testing.T) {
	c := newTestCache(testStrategy())
	c.UpdateURL("a.com/page1")
	require.NoError(t, c.Set(TierDOM, "dom1", []byte("d")))
	require.NoError(t, c.Set(TierAPI, "api1", []byte("a")))

	c.UpdateURL("b.com/home")

	_, ok := c.Get(TierDOM, "dom1")
	assert.False(t, ok)
	_, ok = c.Get(TierAPI, "api1")
	assert.False(t, ok)
}

func TestUpdateURL_SchemelessSameHostKeepsAPI(t *testing.T) {
	c := newTestCache(testStrategy())
	c.UpdateURL("a.com/page1")
	require.NoError(t, c.Set(TierAPI, "api1", []byte("a")))

	c.UpdateURL("a.com/page2")

	_, ok := c.Get(TierAPI, "api1")
	assert.True(t, ok)
}

func TestUpdateURL_FirstNavigationClearsDOMOnly(t *testing.T) {
	c := newTestCache(testStrategy())
	require.NoError(t, c.Set(TierAPI, "api1", []byte("a")))

	c.UpdateURL("https://example.com/")

	_, ok := c.Get(TierAPI, "api1")
	assert.True(t, ok)
}

func TestStatsHitRate(t *testing.T) {
	c := newTestCache(testStrategy())
	require.NoError(t, c.Set(TierDOM, "k", []byte("v")))

	c.Get(TierDOM, "k")
	c.Get(TierDOM, "k")
	c.Get(TierDOM, "absent")

	s := c.Stats()
	assert.Equal(t, 2, s.Hits)
	assert.Equal(t, 1, s.Misses)
	assert.InDelta(t, 2.0/3.0, s.HitRate, 1e-9)
}

func TestOverwriteExistingKey(t *testing.T) {
	c := newTestCache(testStrategy())
	require.NoError(t, c.Set(TierDOM, "k", []byte("v1")))
	require.NoError(t, c.Set(TierDOM, "k", []byte("v2")))

	got, ok := c.Get(TierDOM, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), got)
	assert.Equal(t, 1, c.Stats().Entries)
}
