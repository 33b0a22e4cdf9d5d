package rag

import (
	"context"
	"errors"
	"testing"
	"time"
)

const testProviderTimeout = 20 * time.Millisecond

func TestExtractAbsorbsProviderTimeout(t *testing.T) {
	start := time.Now()
	_, ok := NewDateRangeExtractor(blockingProvider{}, testProviderTimeout).
		Extract(context.Background(), "what did I do this week?", day(2025, 11, 8))
	if ok {
		t.Fatalf("timed out classification must fall back to semantic search")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("extract ignored the provider timeout, took %v", elapsed)
	}
}

func TestAnswerProviderTimeout(t *testing.T) {
	_, err := NewAnswerGenerator(blockingProvider{}, testProviderTimeout).
		Answer(context.Background(), "q", "some context", day(2025, 11, 8))
	if kind, ok := KindOf(err); !ok || kind != KindGeneration {
		t.Fatalf("expected generation failure, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestBySimilarityProviderTimeout(t *testing.T) {
	st := &stubStore{}
	_, err := NewRetriever(st, blockingProvider{}, 500, testProviderTimeout).
		BySimilarity(context.Background(), "user-1", "heaviest squat", 0.5, 5)
	if kind, ok := KindOf(err); !ok || kind != KindRetrieval {
		t.Fatalf("expected retrieval failure, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if st.matchCalls != 0 {
		t.Fatalf("store must not be queried after the embedding times out")
	}
}
