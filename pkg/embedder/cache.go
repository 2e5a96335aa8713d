package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Cache is a content-addressed embedding cache wrapping another Provider.
//
// Keys are derived from a SHA-256 hash of the input text, so identical text
// always maps to the same entry and a cache hit never issues an upstream
// call. Entries are never invalidated for the lifetime of the process; if
// the upstream embedding model changes, cached vectors go stale. This is an
// accepted tradeoff for a small, slow-changing knowledge base.
//
// By default the cache grows without bound. Set MaxEntries in the config to
// cap it: when the cap is reached the whole map is dropped and rebuilt from
// subsequent traffic. A full drop is deliberately simpler than LRU
// bookkeeping and is good enough at the text volumes this cache sees.
//
// Cache is safe for concurrent use.
type Cache struct {
	upstream Provider

	maxEntries int

	mu      sync.RWMutex
	entries map[string][]float64
	hits    uint64
	misses  uint64
}

// CacheConfig contains configuration for an embedding Cache.
type CacheConfig struct {
	// MaxEntries caps the number of cached vectors. 0 means unbounded.
	MaxEntries int
}

// CacheStats reports cache effectiveness counters.
type CacheStats struct {
	// Entries is the current number of cached vectors.
	Entries int

	// Hits is the number of lookups served without an upstream call.
	Hits uint64

	// Misses is the number of lookups that required an upstream call.
	Misses uint64
}

// NewCache wraps the given provider with a content-addressed cache.
//
// Parameters:
//   - upstream: The provider that performs actual embedding calls
//   - cfg: Cache configuration (nil uses defaults: unbounded)
//
// Returns a Cache that itself implements Provider.
func NewCache(upstream Provider, cfg *CacheConfig) *Cache {
	maxEntries := 0
	if cfg != nil {
		maxEntries = cfg.MaxEntries
	}
	return &Cache{
		upstream:   upstream,
		maxEntries: maxEntries,
		entries:    make(map[string][]float64),
	}
}

// cacheKey derives the content-addressed key for a text.
func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embed returns the embedding for text, consulting the cache first.
//
// On a hit the cached vector is returned and no upstream call is made. On a
// miss the upstream provider is called, the result validated (a nil or empty
// vector yields ErrEmptyEmbedding) and stored.
//
// The returned slice is a copy; callers may mutate it freely.
func (c *Cache) Embed(ctx context.Context, text string) ([]float64, error) {
	key := cacheKey(text)

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return cloneVector(cached), nil
	}

	vector, err := c.upstream.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, ErrEmptyEmbedding
	}

	c.mu.Lock()
	c.misses++
	c.storeLocked(key, vector)
	c.mu.Unlock()

	return cloneVector(vector), nil
}

// EmbedBatch embeds multiple texts, serving cached entries locally and
// batching only the misses to the upstream provider.
func (c *Cache) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	results := make([][]float64, len(texts))
	var missTexts []string
	var missIdx []int

	c.mu.RLock()
	for i, text := range texts {
		if cached, ok := c.entries[cacheKey(text)]; ok {
			results[i] = cloneVector(cached)
		} else {
			missTexts = append(missTexts, text)
			missIdx = append(missIdx, i)
		}
	}
	c.mu.RUnlock()

	c.mu.Lock()
	c.hits += uint64(len(texts) - len(missTexts))
	c.mu.Unlock()

	if len(missTexts) == 0 {
		return results, nil
	}

	vectors, err := c.upstream.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, ErrEmptyEmbedding
	}

	c.mu.Lock()
	for i, vector := range vectors {
		if len(vector) == 0 {
			c.mu.Unlock()
			return nil, ErrEmptyEmbedding
		}
		c.misses++
		c.storeLocked(cacheKey(missTexts[i]), vector)
		results[missIdx[i]] = cloneVector(vector)
	}
	c.mu.Unlock()

	return results, nil
}

// storeLocked inserts a vector, dropping the whole map if the cap is hit.
// Caller must hold c.mu.
func (c *Cache) storeLocked(key string, vector []float64) {
	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.entries = make(map[string][]float64)
	}
	c.entries[key] = cloneVector(vector)
}

// Dimensions returns the upstream provider's vector dimension.
func (c *Cache) Dimensions() int {
	return c.upstream.Dimensions()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

// Close closes the upstream provider.
func (c *Cache) Close() error {
	return c.upstream.Close()
}

func cloneVector(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
