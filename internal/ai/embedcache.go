package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/chat-recall/internal/metrics"
)

// EmbeddingCache stores vectors by content key. Implementations swallow
// their own failures; a miss is always a safe answer.
type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vec []float32)
}

// CacheKey is content-addressed so identical text under the same model
// never hits the provider twice.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// CachedEmbedder decorates an Embedder with an EmbeddingCache.
type CachedEmbedder struct {
	next  Embedder
	cache EmbeddingCache
	model string
}

func NewCachedEmbedder(next Embedder, cache EmbeddingCache, model string) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache, model: model}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(c.model, text)
	if vec, ok := c.cache.Get(ctx, key); ok && len(vec) > 0 {
		metrics.EmbeddingCache.WithLabelValues("hit").Inc()
		return vec, nil
	}
	metrics.EmbeddingCache.WithLabelValues("miss").Inc()

	start := time.Now()
	vec, err := c.next.Embed(ctx, text)
	metrics.ProviderDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	metrics.ProviderCalls.WithLabelValues("embed", metrics.Status(err)).Inc()
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int("text_len", len(text)).Msg("embedding failed")
		return nil, err
	}

	c.cache.Set(ctx, key, vec)
	return vec, nil
}

// LRUCache is the in-process fallback when no Redis is configured.
// lru.Cache does its own locking.
type LRUCache struct {
	cache *lru.Cache
	ttl   time.Duration
	now   func() time.Time
}

type lruEntry struct {
	value     []float32
	expiresAt time.Time
}

func NewLRUCache(maxSize int, ttl time.Duration) (*LRUCache, error) {
	if maxSize <= 0 {
		maxSize = 4096
	}
	cache, err := lru.New(maxSize)
	if err != nil {
		return nil, err
	}
	return &LRUCache{cache: cache, ttl: ttl, now: time.Now}, nil
}

func (c *LRUCache) Get(_ context.Context, key string) ([]float32, bool) {
	val, found := c.cache.Get(key)
	if !found {
		return nil, false
	}
	entry := val.(lruEntry)
	if c.ttl > 0 && c.now().After(entry.expiresAt) {
		return nil, false
	}
	out := make([]float32, len(entry.value))
	copy(out, entry.value)
	return out, true
}

func (c *LRUCache) Set(_ context.Context, key string, vec []float32) {
	stored := make([]float32, len(vec))
	copy(stored, vec)
	c.cache.Add(key, lruEntry{value: stored, expiresAt: c.now().Add(c.ttl)})
}

var (
	_ Embedder       = (*CachedEmbedder)(nil)
	_ EmbeddingCache = (*LRUCache)(nil)
)
