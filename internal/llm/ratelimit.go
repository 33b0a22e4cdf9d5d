package llm

import (
	"context"
	"encoding/json"

	"golang.org/x/time/rate"
)

// Embedder produces semantic vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Provider is the full surface of Client.
type Provider interface {
	Embedder
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStructured(ctx context.Context, prompt string, schema Schema) (json.RawMessage, error)
}

// RateLimited throttles every provider call through one shared token bucket.
type RateLimited struct {
	inner  Provider
	bucket *rate.Limiter
}

// NewRateLimited wraps inner. A non-positive rps disables throttling.
func NewRateLimited(inner Provider, rps float64, burst int) *RateLimited {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{inner: inner, bucket: rate.NewLimiter(limit, burst)}
}

func (r *RateLimited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := r.bucket.Wait(ctx); err != nil {
		return "", err
	}
	return r.inner.Generate(ctx, prompt)
}

func (r *RateLimited) GenerateStructured(ctx context.Context, prompt string, schema Schema) (json.RawMessage, error) {
	if err := r.bucket.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.GenerateStructured(ctx, prompt, schema)
}

func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.bucket.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, text)
}
