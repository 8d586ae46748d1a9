// Package audiocache is the content-addressed store for synthesized
// coaching audio. Its central correctness property is single-flight
// resolution: concurrent misses for one key trigger exactly one upstream
// synthesis, and every waiter receives the same entry, including the same
// synthesis latency metadata. Entries are reference-counted while being
// served so eviction never removes audio out from under a reader.
package audiocache

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/adaptivefit/coachpipe/internal/blob"
	"github.com/adaptivefit/coachpipe/internal/observability"
	"github.com/adaptivefit/coachpipe/internal/speech"
)

// SynthesizeFunc produces audio on a cache miss. It runs detached from any
// single caller's deadline: an abandoned waiter must not cancel work other
// waiters or future requests will benefit from.
type SynthesizeFunc func(ctx context.Context) (speech.Audio, error)

// Entry describes cached audio.
type Entry struct {
	AudioURL     string
	ByteSize     int64
	Duration     time.Duration
	SynthLatency time.Duration
	CreatedAt    time.Time
	LastAccess   time.Time
	ExpiresAt    time.Time
	AccessCount  int64
}

// Lease is a pinned read of an entry. The entry cannot be evicted until
// Release is called.
type Lease struct {
	Entry
	release func()
	once    sync.Once
}

func (l *Lease) Release() {
	if l.release != nil {
		l.once.Do(l.release)
	}
}

// Stats is a point-in-time cache summary.
type Stats struct {
	Entries   int   `json:"entries"`
	Bytes     int64 `json:"bytes"`
	MaxBytes  int64 `json:"max_bytes"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

type cacheEntry struct {
	entry   Entry
	readers int
}

type Config struct {
	TTL      time.Duration
	MaxBytes int64
	// SynthTimeout bounds the detached synthesis run on a miss.
	SynthTimeout time.Duration
}

// evictTarget is the fill fraction eviction drains to, leaving headroom so
// a full cache does not evict on every insert.
const evictTarget = 0.8

type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	// lru holds keys oldest-first; refreshed on every read.
	lru   []string
	bytes int64

	hits      int64
	misses    int64
	evictions int64

	ttl          time.Duration
	maxBytes     int64
	synthTimeout time.Duration

	flight  singleflight.Group
	blobs   blob.Store
	metrics *observability.Metrics
}

func New(cfg Config, blobs blob.Store, metrics *observability.Metrics) *Cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 500 * 1024 * 1024
	}
	synthTimeout := cfg.SynthTimeout
	if synthTimeout <= 0 {
		synthTimeout = 10 * time.Second
	}
	return &Cache{
		entries:      make(map[string]*cacheEntry),
		ttl:          ttl,
		maxBytes:     maxBytes,
		synthTimeout: synthTimeout,
		blobs:        blobs,
		metrics:      metrics,
	}
}

// GetOrSynthesize resolves a key to audio. On a hit the returned lease pins
// the entry until released. On a miss, fn runs once per key no matter how
// many callers arrive; all of them block on the same flight. When ctx
// expires while waiting, this caller gets ctx.Err() but the flight keeps
// running and stores its result for future hits.
func (c *Cache) GetOrSynthesize(ctx context.Context, key Key, fn SynthesizeFunc) (*Lease, bool, error) {
	hash := key.Hash()

	if lease := c.acquire(hash, time.Now()); lease != nil {
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return lease, true, nil
	}

	ch := c.flight.DoChan(hash, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.Background(), c.synthTimeout)
		defer cancel()

		audio, err := fn(sctx)
		if err != nil {
			// No negative caching: a later retry may succeed.
			return Entry{}, err
		}
		url, err := c.blobs.Put(sctx, hash, audio.Bytes)
		if err != nil {
			return Entry{}, err
		}
		return c.store(hash, url, audio), nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			c.metrics.CacheLookups.WithLabelValues("error").Inc()
			return nil, false, res.Err
		}
		if res.Shared {
			c.metrics.CacheLookups.WithLabelValues("coalesced").Inc()
		} else {
			c.metrics.CacheLookups.WithLabelValues("miss").Inc()
		}
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		if lease := c.acquire(hash, time.Now()); lease != nil {
			return lease, false, nil
		}
		// Evicted between store and acquire; serve the flight's copy.
		entry := res.Val.(Entry)
		return &Lease{Entry: entry}, false, nil
	case <-ctx.Done():
		c.metrics.CacheLookups.WithLabelValues("abandoned").Inc()
		return nil, false, ctx.Err()
	}
}

// acquire pins and returns a live entry, or nil when absent or expired.
func (c *Cache) acquire(hash string, now time.Time) *Lease {
	c.mu.Lock()
	defer c.mu.Unlock()

	ce, ok := c.entries[hash]
	if !ok {
		return nil
	}
	if now.After(ce.entry.ExpiresAt) {
		// Lazily drop the expired entry unless someone is mid-read.
		if ce.readers == 0 {
			c.removeLocked(hash, "expired")
		}
		return nil
	}

	ce.entry.LastAccess = now
	ce.entry.AccessCount++
	c.touchLRULocked(hash)
	ce.readers++

	entry := ce.entry
	return &Lease{
		Entry: entry,
		release: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if cur, ok := c.entries[hash]; ok && cur.readers > 0 {
				cur.readers--
			}
		},
	}
}

// store inserts the freshly synthesized entry and evicts lazily when the
// insert pushed the cache over budget.
func (c *Cache) store(hash, url string, audio speech.Audio) Entry {
	now := time.Now()
	entry := Entry{
		AudioURL:     url,
		ByteSize:     int64(len(audio.Bytes)),
		Duration:     audio.Duration,
		SynthLatency: audio.Elapsed,
		CreatedAt:    now,
		LastAccess:   now,
		ExpiresAt:    now.Add(c.ttl),
	}

	c.mu.Lock()
	if old, ok := c.entries[hash]; ok {
		// Store race: the key is already present, typically because a
		// reader lease kept an expired entry alive past a fresh flight.
		// Renew its lifetime in place so the next lookup hits instead of
		// re-synthesizing, and keep its audio, which is equivalent for
		// this content key.
		if now.After(old.entry.ExpiresAt) {
			old.entry.CreatedAt = now
			old.entry.LastAccess = now
			old.entry.ExpiresAt = now.Add(c.ttl)
			old.entry.SynthLatency = audio.Elapsed
			c.touchLRULocked(hash)
		}
		entry = old.entry
		stale := ""
		if entry.AudioURL != url {
			stale = url
		}
		c.mu.Unlock()
		if stale != "" {
			c.deleteBlobs([]string{stale})
		}
		return entry
	}
	c.entries[hash] = &cacheEntry{entry: entry}
	c.lru = append(c.lru, hash)
	c.bytes += entry.ByteSize
	removed := c.evictLocked(now)
	c.publishGaugesLocked()
	c.mu.Unlock()

	c.deleteBlobs(removed)
	return entry
}

// Sweep removes expired entries and drains over-budget LRU entries. It runs
// on the background cadence and is also invoked lazily on insert.
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	removed := c.evictLocked(now)
	c.publishGaugesLocked()
	c.mu.Unlock()

	c.deleteBlobs(removed)
	return len(removed)
}

// StartSweeper runs Sweep on an interval until ctx is cancelled.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				c.Sweep(t)
			}
		}
	}()
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   len(c.entries),
		Bytes:     c.bytes,
		MaxBytes:  c.maxBytes,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// evictLocked applies TTL expiry first, then LRU eviction down to the
// watermark. Entries with in-flight readers are skipped and revisited on
// the next cycle. Returns blob URLs to delete outside the lock.
func (c *Cache) evictLocked(now time.Time) []string {
	var removed []string

	for _, hash := range append([]string(nil), c.lru...) {
		ce, ok := c.entries[hash]
		if !ok || ce.readers > 0 {
			continue
		}
		if now.After(ce.entry.ExpiresAt) {
			removed = append(removed, ce.entry.AudioURL)
			c.removeLocked(hash, "expired")
		}
	}

	if c.bytes <= c.maxBytes {
		return removed
	}
	target := int64(float64(c.maxBytes) * evictTarget)
	for _, hash := range append([]string(nil), c.lru...) {
		if c.bytes <= target {
			break
		}
		ce, ok := c.entries[hash]
		if !ok || ce.readers > 0 {
			continue
		}
		removed = append(removed, ce.entry.AudioURL)
		c.removeLocked(hash, "lru")
	}
	return removed
}

func (c *Cache) removeLocked(hash, reason string) {
	ce, ok := c.entries[hash]
	if !ok {
		return
	}
	delete(c.entries, hash)
	c.bytes -= ce.entry.ByteSize
	for i, k := range c.lru {
		if k == hash {
			c.lru = append(c.lru[:i], c.lru[i+1:]...)
			break
		}
	}
	c.evictions++
	c.metrics.CacheEvictions.WithLabelValues(reason).Inc()
}

func (c *Cache) touchLRULocked(hash string) {
	for i, k := range c.lru {
		if k == hash {
			c.lru = append(c.lru[:i], c.lru[i+1:]...)
			break
		}
	}
	c.lru = append(c.lru, hash)
}

func (c *Cache) publishGaugesLocked() {
	c.metrics.CacheBytes.Set(float64(c.bytes))
	c.metrics.CacheEntries.Set(float64(len(c.entries)))
}

func (c *Cache) deleteBlobs(urls []string) {
	for _, url := range urls {
		if err := c.blobs.Delete(context.Background(), url); err != nil {
			log.Printf("audiocache: delete blob %s: %v", url, err)
		}
	}
}
