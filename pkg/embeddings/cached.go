package embeddings

import (
	"context"

	"go.uber.org/zap"

	"github.com/llmpagina/avamem/pkg/memory"
)

// Cached wraps an Embedder with a DiskCache keyed by content hash.
// Hits skip the model call entirely; misses are written through.
type Cached struct {
	inner  Embedder
	cache  *DiskCache
	logger *zap.Logger
}

// NewCached wraps inner with the given cache.
func NewCached(inner Embedder, cache *DiskCache, logger *zap.Logger) *Cached {
	return &Cached{
		inner:  inner,
		cache:  cache,
		logger: logger,
	}
}

// Embed returns the cached embedding when available, otherwise calls the
// inner embedder and caches the result. A cache write failure is logged
// and does not fail the embed.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := memory.HashText(text)

	if embedding, ok := c.cache.Get(hash); ok {
		c.logger.Debug("embedding cache hit", zap.String("hash", hash))
		return embedding, nil
	}

	embedding, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Put(hash, embedding); err != nil {
		c.logger.Warn("caching embedding failed",
			zap.String("hash", hash),
			zap.Error(err),
		)
	}

	return embedding, nil
}

// Close releases the inner embedder.
func (c *Cached) Close() error {
	return c.inner.Close()
}

var _ Embedder = (*Cached)(nil)
