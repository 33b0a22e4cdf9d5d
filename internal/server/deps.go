package server

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/liftbuddy/config"
	"github.com/mohammad-safakhou/liftbuddy/internal/llm"
	"github.com/mohammad-safakhou/liftbuddy/internal/rag"
	"github.com/mohammad-safakhou/liftbuddy/internal/runtime"
	"github.com/mohammad-safakhou/liftbuddy/internal/store"
	"github.com/mohammad-safakhou/liftbuddy/internal/worker"
)

// Deps is the shared dependency graph of the API, the CLI and the backfill job.
type Deps struct {
	Store    *store.Store
	Redis    *redis.Client
	Provider *llm.RateLimited
	Embedder llm.Embedder
	Pipeline *rag.Pipeline
}

// NewDeps connects Postgres and, when configured, Redis, then assembles the query pipeline.
func NewDeps(ctx context.Context, cfg *config.Config) (*Deps, error) {
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return nil, fmt.Errorf("llm api key not configured (llm.api_key or OPENAI_API_KEY)")
	}
	dsn, err := runtime.BuildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	d := &Deps{Store: st}

	rdb, err := runtime.ConnectRedis(ctx, cfg.Storage.Redis)
	if err != nil {
		// cache and lock are optional, the API keeps working without them
		log.Printf("redis unavailable, continuing without cache and lock: %v", err)
	}
	d.Redis = rdb

	d.Provider = llm.NewRateLimited(llm.NewClient(llm.OptionsFromConfig(cfg.LLM)), cfg.LLM.RequestsPerSecond, cfg.LLM.Burst)
	d.Embedder = d.Provider
	if d.Redis != nil {
		d.Embedder = llm.NewCachedEmbedder(d.Provider, d.Redis, cfg.LLM.EmbeddingModel, cfg.Storage.Redis.EmbeddingCacheTTL)
	}

	timeout := cfg.RAG.ProviderTimeout
	d.Pipeline = rag.NewPipeline(
		rag.NewDateRangeExtractor(d.Provider, timeout),
		rag.NewRetriever(d.Store, d.Embedder, cfg.RAG.DateRangeLimit, timeout),
		rag.NewAnswerGenerator(d.Provider, timeout),
		rag.Options{
			MatchThreshold: cfg.RAG.MatchThreshold,
			MatchCount:     cfg.RAG.MatchCount,
			Location:       cfg.General.Location(),
		},
	)
	return d, nil
}

// Backfill builds the embedding backfill job over these dependencies.
func (d *Deps) Backfill(cfg config.BackfillConfig) (*worker.Backfill, error) {
	var lock redis.Cmdable
	if d.Redis != nil {
		lock = d.Redis
	}
	return worker.NewBackfill(d.Store, d.Embedder, lock, cfg.Cron, cfg.BatchSize)
}

func (d *Deps) Close() {
	if d == nil {
		return
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	_ = d.Store.Close()
}
