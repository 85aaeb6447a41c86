package cache

import (
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/navimind/navimind/pkg/config"
)

// Tier selects one of the cache partitions. Tiers expire and evict
// independently so a burst of screenshots cannot push DOM snapshots out.
type Tier string

const (
	TierDOM        Tier = "dom"
	TierAPI        Tier = "api"
	TierScreenshot Tier = "screenshot"
)

// Stats is a snapshot of cache counters. HitRate is hits/(hits+misses), 0
// when nothing was looked up yet.
type Stats struct {
	Hits      int     `json:"hits"`
	Misses    int     `json:"misses"`
	Evictions int     `json:"evictions"`
	Entries   int     `json:"entries"`
	TotalSize int     `json:"totalSize"`
	HitRate   float64 `json:"hitRate"`
}

// ContentCache caches page-derived content per session. Safe for
// concurrent use. A disabled cache accepts every call and never stores
// anything.
type ContentCache struct {
	mu       sync.Mutex
	strategy config.CacheStrategy
	logger   *slog.Logger

	tiers   map[Tier]*lru
	lastURL string

	hits   int
	misses int
}

// New builds a cache from the session's strategy. The screenshot tier gets
// half the entry budget of the text tiers.
func New(strategy config.CacheStrategy, logger *slog.Logger) *ContentCache {
	ttl := time.Duration(strategy.TTLMs) * time.Millisecond
	screenshotMax := strategy.MaxSize / 2
	if screenshotMax < 1 {
		screenshotMax = 1
	}
	c := &ContentCache{
		strategy: strategy,
		logger:   logger,
		tiers: map[Tier]*lru{
			TierDOM:        newLRU(strategy.MaxSize, ttl),
			TierAPI:        newLRU(strategy.MaxSize, ttl),
			TierScreenshot: newLRU(screenshotMax, ttl),
		},
	}
	return c
}

// Set stores value under key in the given tier. Values over the
// compression threshold are deflated when compression is enabled.
func (c *ContentCache) Set(tier Tier, key string, value []byte) error {
	if !c.strategy.Enabled {
		return nil
	}
	t, ok := c.tiers[tier]
	if !ok {
		return nil
	}

	e := &entry{key: key, data: value, rawSize: len(value)}
	if c.strategy.CompressionEnabled && len(value) > c.strategy.CompressionThreshold {
		packed, err := compress(value)
		if err != nil {
			return err
		}
		if len(packed) < len(value) {
			e.data = packed
			e.compressed = true
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e.storedAt = time.Now()
	t.put(e)
	return nil
}

// Get returns the cached value, or ok=false on miss or expiry.
func (c *ContentCache) Get(tier Tier, key string) ([]byte, bool) {
	if !c.strategy.Enabled {
		return nil, false
	}
	t, ok := c.tiers[tier]
	if !ok {
		return nil, false
	}

	c.mu.Lock()
	e, found := t.get(key)
	if !found {
		c.misses++
		c.mu.Unlock()
		return nil, false
	}
	c.hits++
	data, compressed := e.data, e.compressed
	c.mu.Unlock()

	if !compressed {
		return data, true
	}
	raw, err := decompress(data)
	if err != nil {
		c.logger.Warn("cache entry failed to decompress, dropping", "tier", tier, "key", key, "error", err)
		c.Delete(tier, key)
		return nil, false
	}
	return raw, true
}

// Delete removes one entry.
func (c *ContentCache) Delete(tier Tier, key string) {
	if !c.strategy.Enabled {
		return
	}
	if t, ok := c.tiers[tier]; ok {
		c.mu.Lock()
		t.delete(key)
		c.mu.Unlock()
	}
}

// Clear empties the given tiers, or all tiers when none are named.
func (c *ContentCache) Clear(tiers ...Tier) {
	if !c.strategy.Enabled {
		return
	}
	if len(tiers) == 0 {
		tiers = []Tier{TierDOM, TierAPI, TierScreenshot}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tier := range tiers {
		if t, ok := c.tiers[tier]; ok {
			t.clear()
		}
	}
}

// UpdateURL applies navigation invalidation. Staying on the same host
// drops only the DOM tier; crossing hosts drops everything. The first
// observed navigation counts as same-host.
func (c *ContentCache) UpdateURL(newURL string) {
	if !c.strategy.Enabled {
		return
	}
	c.mu.Lock()
	prev := c.lastURL
	c.lastURL = newURL
	c.mu.Unlock()

	if prev == "" || hostOf(prev) == hostOf(newURL) {
		c.Clear(TierDOM)
		return
	}
	c.logger.Debug("host changed, clearing all cache tiers", "from", hostOf(prev), "to", hostOf(newURL))
	c.Clear()
}

func hostOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	// A scheme-less URL parses as a bare path; the host is the text before
	// the first slash.
	host, _, _ := strings.Cut(raw, "/")
	return host
}

// Stats returns current counters across all tiers.
func (c *ContentCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{Hits: c.hits, Misses: c.misses}
	for _, t := range c.tiers {
		s.Evictions += t.evictions
		s.Entries += t.len()
		s.TotalSize += t.totalBytes()
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
