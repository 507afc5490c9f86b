package services

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/yungbote/itvault-backend/internal/modules/indexing"
	"github.com/yungbote/itvault-backend/internal/observability"
)

// QueryEmbeddingCache memoizes query vectors per embedding space.
type QueryEmbeddingCache struct {
	cache *lru.Cache[string, []float32]
}

// NewQueryEmbeddingCache returns nil when size <= 0; a nil cache always misses.
func NewQueryEmbeddingCache(size int) (*QueryEmbeddingCache, error) {
	if size <= 0 {
		return nil, nil
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &QueryEmbeddingCache{cache: c}, nil
}

func (c *QueryEmbeddingCache) Embed(ctx context.Context, p indexing.EmbeddingProvider, text string) ([]float32, error) {
	if c == nil {
		return p.Embed(ctx, text)
	}
	key := indexing.ModelTag(p.Model(), p.Dimension()) + "\x00" + text
	if v, ok := c.cache.Get(key); ok {
		observability.Current().IncEmbeddingCache(true)
		return v, nil
	}
	observability.Current().IncEmbeddingCache(false)
	v, err := p.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, v)
	return v, nil
}

func (c *QueryEmbeddingCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}
