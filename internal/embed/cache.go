package embed

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// CachedEmbedder memoizes another Embedder's output keyed by text.
type CachedEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCachedEmbedder wraps inner with a cache bounded to maxBytes of vector
// data. A non-positive maxBytes returns inner unchanged.
func NewCachedEmbedder(inner Embedder, maxBytes int64) (Embedder, error) {
	if maxBytes <= 0 {
		return inner, nil
	}

	// Each vector costs 8 bytes per component.
	perItem := int64(inner.Dimensions()) * 8
	if perItem <= 0 {
		perItem = 1
	}
	counters := 10 * (maxBytes / perItem)
	if counters < 1000 {
		counters = 1000
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: counters,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: c}, nil
}

func (c *CachedEmbedder) Model() string   { return c.inner.Model() }
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// Embed returns a cached copy of the vector for text, computing it on a miss.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if v, ok := c.cache.Get(text); ok {
		if vec, ok := v.([]float64); ok {
			return append([]float64(nil), vec...), nil
		}
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	stored := append([]float64(nil), vec...)
	c.cache.Set(text, stored, int64(len(stored))*8)
	return vec, nil
}

// Wait blocks until pending cache writes are applied.
func (c *CachedEmbedder) Wait() { c.cache.Wait() }

// Close releases the cache.
func (c *CachedEmbedder) Close() error {
	c.cache.Close()
	return nil
}
