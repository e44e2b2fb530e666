package redisstore

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const embeddingKeyPrefix = "chat-recall:emb:v1:"

// EmbeddingCache stores vectors as little-endian float32 blobs.
type EmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (s *Store) EmbeddingCache(ttl time.Duration) *EmbeddingCache {
	return &EmbeddingCache{client: s.Client, ttl: ttl}
}

func (c *EmbeddingCache) Get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.client.Get(ctx, embeddingKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("redis embedding get failed")
		}
		return nil, false
	}
	vec, ok := decodeVector(data)
	return vec, ok
}

func (c *EmbeddingCache) Set(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.client.Set(ctx, embeddingKeyPrefix+key, encodeVector(vec), c.ttl).Err(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("redis embedding set failed")
	}
}

func encodeVector(vec []float32) []byte {
	data := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(f))
	}
	return data
}

func decodeVector(data []byte) ([]float32, bool) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, true
}
