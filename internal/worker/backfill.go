package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/liftbuddy/internal/llm"
	"github.com/mohammad-safakhou/liftbuddy/internal/rag"
	"github.com/mohammad-safakhou/liftbuddy/internal/store"
)

const (
	LockKey          = "backfill:lock"
	LockTTL          = 2 * time.Minute
	DefaultBatchSize = 100
)

var (
	backfilled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liftbuddy_backfill_embedded_total",
		Help: "Rows that received an embedding from the backfill job.",
	}, []string{"kind"})
	backfillFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liftbuddy_backfill_failures_total",
		Help: "Rows the backfill job could not embed.",
	}, []string{"kind"})
)

// releaseScript deletes the lock only if this replica still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// StoreAPI captures the store methods required by the backfill job.
type StoreAPI interface {
	SetsMissingEmbeddings(ctx context.Context, limit int) ([]store.PendingSet, error)
	UpdateSetEmbedding(ctx context.Context, id string, vector []float32) error
	DefinitionsMissingEmbeddings(ctx context.Context, limit int) ([]store.ExerciseDefinition, error)
	UpdateDefinitionEmbedding(ctx context.Context, id string, vector []float32) error
}

// Stats summarises one backfill pass.
type Stats struct {
	Sets        int
	Definitions int
	Failed      int
	Skipped     bool
}

// Backfill fills missing set and definition embeddings on a cron schedule.
type Backfill struct {
	logger    *log.Logger
	store     StoreAPI
	embedder  llm.Embedder
	rdb       redis.Cmdable
	schedule  *cronexpr.Expression
	batchSize int
}

// NewBackfill builds the job. rdb may be nil, in which case passes run without a lock.
func NewBackfill(st StoreAPI, embedder llm.Embedder, rdb redis.Cmdable, cron string, batchSize int) (*Backfill, error) {
	expr, err := cronexpr.Parse(cron)
	if err != nil {
		return nil, fmt.Errorf("backfill cron %q: %w", cron, err)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Backfill{
		logger:    log.New(log.Writer(), "[BACKFILL] ", log.LstdFlags),
		store:     st,
		embedder:  embedder,
		rdb:       rdb,
		schedule:  expr,
		batchSize: batchSize,
	}, nil
}

// Start runs a pass at every scheduled time until ctx is cancelled.
func (b *Backfill) Start(ctx context.Context) {
	go func() {
		for {
			next := b.schedule.Next(time.Now())
			if next.IsZero() {
				b.logger.Printf("schedule has no future runs, stopping")
				return
			}
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				stats, err := b.RunOnce(ctx)
				if err != nil {
					b.logger.Printf("pass failed: %v", err)
					continue
				}
				if !stats.Skipped && (stats.Sets+stats.Definitions+stats.Failed) > 0 {
					b.logger.Printf("embedded sets=%d definitions=%d failed=%d", stats.Sets, stats.Definitions, stats.Failed)
				}
			}
		}
	}()
}

// RunOnce embeds one batch of sets and one batch of definitions.
// Stats.Skipped is set when another replica holds the lock.
func (b *Backfill) RunOnce(ctx context.Context) (Stats, error) {
	release, ok := b.acquire(ctx)
	if !ok {
		return Stats{Skipped: true}, nil
	}
	defer release()

	var stats Stats
	sets, err := b.store.SetsMissingEmbeddings(ctx, b.batchSize)
	if err != nil {
		return stats, fmt.Errorf("list sets: %w", err)
	}
	for _, s := range sets {
		if err := b.embedInto(ctx, "set", s.ID, rag.SetDocument(s.ExerciseName, s.Reps, s.WeightKg), b.store.UpdateSetEmbedding); err != nil {
			stats.Failed++
			continue
		}
		stats.Sets++
	}

	defs, err := b.store.DefinitionsMissingEmbeddings(ctx, b.batchSize)
	if err != nil {
		return stats, fmt.Errorf("list definitions: %w", err)
	}
	for _, d := range defs {
		if err := b.embedInto(ctx, "definition", d.ID, rag.DefinitionDocument(d.Name, d.MuscleGroup), b.store.UpdateDefinitionEmbedding); err != nil {
			stats.Failed++
			continue
		}
		stats.Definitions++
	}
	return stats, nil
}

func (b *Backfill) embedInto(ctx context.Context, kind, id, text string, update func(context.Context, string, []float32) error) error {
	vec, err := b.embedder.Embed(ctx, text)
	if err == nil {
		err = update(ctx, id, vec)
	}
	if err != nil {
		// a row deleted since it was listed is not a failure worth retrying
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		backfillFailures.WithLabelValues(kind).Inc()
		b.logger.Printf("%s %s: %v", kind, id, err)
		return err
	}
	backfilled.WithLabelValues(kind).Inc()
	return nil
}

// acquire takes the cross-replica lock. Without Redis every pass runs.
func (b *Backfill) acquire(ctx context.Context) (func(), bool) {
	if b.rdb == nil {
		return func() {}, true
	}
	token := uuid.NewString()
	ok, err := b.rdb.SetNX(ctx, LockKey, token, LockTTL).Result()
	if err != nil {
		b.logger.Printf("lock unavailable, skipping pass: %v", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, b.rdb, []string{LockKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			b.logger.Printf("release lock: %v", err)
		}
	}, true
}
