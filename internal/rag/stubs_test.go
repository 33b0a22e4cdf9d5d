package rag

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mohammad-safakhou/liftbuddy/internal/llm"
	"github.com/mohammad-safakhou/liftbuddy/internal/store"
)

type stubStructured struct {
	raw        string
	err        error
	calls      int
	lastPrompt string
	lastSchema llm.Schema
}

func (s *stubStructured) GenerateStructured(ctx context.Context, prompt string, schema llm.Schema) (json.RawMessage, error) {
	s.calls++
	s.lastPrompt = prompt
	s.lastSchema = schema
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.raw), nil
}

type stubGenerator struct {
	out        string
	err        error
	calls      int
	lastPrompt string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.calls++
	s.lastPrompt = prompt
	return s.out, s.err
}

type stubEmbedder struct {
	vec      []float32
	err      error
	calls    int
	lastText string
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	s.lastText = text
	return s.vec, s.err
}

type stubStore struct {
	dateRows  []store.WorkoutRow
	matchRows []store.WorkoutRow
	err       error

	dateCalls  int
	matchCalls int
	lastUser   string
	lastFrom   time.Time
	lastTo     time.Time
	lastLimit  int
	lastVector []float32
	lastThresh float64
}

func (s *stubStore) WorkoutsByDateRange(ctx context.Context, userID string, from, to time.Time, limit int) ([]store.WorkoutRow, error) {
	s.dateCalls++
	s.lastUser, s.lastFrom, s.lastTo, s.lastLimit = userID, from, to, limit
	return s.dateRows, s.err
}

func (s *stubStore) MatchWorkouts(ctx context.Context, userID string, vector []float32, threshold float64, limit int) ([]store.WorkoutRow, error) {
	s.matchCalls++
	s.lastUser, s.lastVector, s.lastThresh, s.lastLimit = userID, vector, threshold, limit
	return s.matchRows, s.err
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// blockingProvider never answers before its context ends.
type blockingProvider struct{}

func (blockingProvider) GenerateStructured(ctx context.Context, prompt string, schema llm.Schema) (json.RawMessage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingProvider) Generate(ctx context.Context, prompt string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
