package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/liftbuddy/internal/llm"
	"github.com/mohammad-safakhou/liftbuddy/internal/store"
)

// WorkoutStore is the subset of the store used for retrieval.
type WorkoutStore interface {
	WorkoutsByDateRange(ctx context.Context, userID string, from, to time.Time, limit int) ([]store.WorkoutRow, error)
	MatchWorkouts(ctx context.Context, userID string, vector []float32, threshold float64, limit int) ([]store.WorkoutRow, error)
}

// DefaultDateRangeLimit caps date-range retrieval so a wide window cannot blow up the prompt.
const DefaultDateRangeLimit = 500

// Retriever fetches workout records by date window or by semantic similarity.
type Retriever struct {
	store     WorkoutStore
	embedder  llm.Embedder
	dateLimit int
	timeout   time.Duration
}

func NewRetriever(st WorkoutStore, embedder llm.Embedder, dateLimit int, timeout time.Duration) *Retriever {
	if dateLimit <= 0 {
		dateLimit = DefaultDateRangeLimit
	}
	return &Retriever{store: st, embedder: embedder, dateLimit: dateLimit, timeout: timeout}
}

// ByDateRange returns the user's records inside r in chronological order.
func (r *Retriever) ByDateRange(ctx context.Context, userID string, dr DateRange) ([]WorkoutRecord, error) {
	rows, err := r.store.WorkoutsByDateRange(ctx, userID, dr.Start, dr.End, r.dateLimit)
	if err != nil {
		return nil, newError(KindRetrieval, "date range query", err)
	}
	return toRecords(rows, false), nil
}

// BySimilarity embeds query once and returns up to topK records with similarity >= threshold,
// most similar first.
func (r *Retriever) BySimilarity(ctx context.Context, userID, query string, threshold float64, topK int) ([]WorkoutRecord, error) {
	if strings.TrimSpace(query) == "" {
		return nil, newError(KindRetrieval, "embed", ErrEmptyQuery)
	}
	if topK <= 0 {
		return nil, newError(KindRetrieval, "similarity query", fmt.Errorf("topK must be > 0"))
	}
	ectx, cancel := withTimeout(ctx, r.timeout)
	vec, err := r.embedder.Embed(ectx, query)
	cancel()
	if err != nil {
		return nil, newError(KindRetrieval, "embed", err)
	}
	if len(vec) == 0 {
		return nil, newError(KindRetrieval, "embed", llm.ErrEmptyEmbedding)
	}
	rows, err := r.store.MatchWorkouts(ctx, userID, vec, threshold, topK)
	if err != nil {
		return nil, newError(KindRetrieval, "similarity query", err)
	}
	return toRecords(rows, true), nil
}

func toRecords(rows []store.WorkoutRow, withSimilarity bool) []WorkoutRecord {
	out := make([]WorkoutRecord, 0, len(rows))
	for _, row := range rows {
		rec := WorkoutRecord{
			WorkoutDate:  row.WorkoutDate,
			ExerciseName: row.ExerciseName,
			Reps:         row.Reps,
			WeightKg:     row.WeightKg,
		}
		if withSimilarity {
			sim := row.Similarity
			rec.Similarity = &sim
		}
		out = append(out, rec)
	}
	return out
}
