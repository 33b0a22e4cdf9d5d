package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"log"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

const embeddingKeyPrefix = "emb:"

// CachedEmbedder memoises vectors in Redis keyed by model and text.
// Redis failures fall through to the wrapped embedder.
type CachedEmbedder struct {
	inner  Embedder
	client redis.Cmdable
	model  string
	ttl    time.Duration
	logger *log.Logger
}

func NewCachedEmbedder(inner Embedder, client redis.Cmdable, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		inner:  inner,
		client: client,
		model:  model,
		ttl:    ttl,
		logger: log.New(log.Writer(), "[EMBED-CACHE] ", log.LstdFlags),
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if vec, ok := decodeFloats(raw); ok {
			embeddingCache.WithLabelValues("hit").Inc()
			return vec, nil
		}
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Printf("get %s: %v", key, err)
	}
	embeddingCache.WithLabelValues("miss").Inc()

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, encodeFloats(vec), c.ttl).Err(); err != nil {
		c.logger.Printf("set %s: %v", key, err)
	}
	return vec, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return embeddingKeyPrefix + hex.EncodeToString(sum[:])
}

func encodeFloats(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeFloats(buf []byte) ([]float32, bool) {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, true
}
