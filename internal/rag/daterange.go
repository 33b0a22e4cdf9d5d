package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mohammad-safakhou/liftbuddy/internal/llm"
)

// StructuredGenerator produces a JSON document constrained by a schema.
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, prompt string, schema llm.Schema) (json.RawMessage, error)
}

// Classifier decides whether a query is time-scoped. ok is false for anything that should be
// answered through semantic search, including classification failures.
type Classifier interface {
	Extract(ctx context.Context, query string, today time.Time) (r DateRange, ok bool)
}

const dateRangePrompt = `Analyze the user query and determine if it's asking about a specific time period.

Current date: %s

User query: "%s"

Instructions:
- If the query asks about a specific time period (like "this week", "last month", "yesterday", "in November"), set is_date_query to true and provide start_date and end_date in YYYY-MM-DD format, resolved against the current date.
- If the query is NOT about a time period (like "heaviest weight", "best exercise", "total volume"), set is_date_query to false and omit the dates.

Examples when the current date is 2025-11-08:
- "what are my workouts this week?" -> is_date_query: true, start_date: "2025-11-03", end_date: "2025-11-08"
- "what did I do yesterday?" -> is_date_query: true, start_date: "2025-11-07", end_date: "2025-11-07"
- "heaviest bicep curl" -> is_date_query: false`

// DateRangeExtractor delegates temporal understanding to the generation provider.
type DateRangeExtractor struct {
	gen     StructuredGenerator
	timeout time.Duration
	logger  *log.Logger
}

func NewDateRangeExtractor(gen StructuredGenerator, timeout time.Duration) *DateRangeExtractor {
	return &DateRangeExtractor{
		gen:     gen,
		timeout: timeout,
		logger:  log.New(log.Writer(), "[RAG] ", log.LstdFlags),
	}
}

// Classify returns the provider's classification or a classification error.
func (e *DateRangeExtractor) Classify(ctx context.Context, query string, today time.Time) (Classification, error) {
	prompt := fmt.Sprintf(dateRangePrompt, today.Format(dateLayout), query)
	cctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()
	raw, err := e.gen.GenerateStructured(cctx, prompt, DateRangeSchema())
	if err != nil {
		return nil, newError(KindClassification, "generate", err)
	}
	c, err := ParseClassification(raw)
	if err != nil {
		return nil, newError(KindClassification, "parse", err)
	}
	return c, nil
}

// Extract absorbs classification failures and reports them as "not a date query".
func (e *DateRangeExtractor) Extract(ctx context.Context, query string, today time.Time) (DateRange, bool) {
	c, err := e.Classify(ctx, query, today)
	if err != nil {
		recordFailure(err)
		e.logger.Printf("date range extraction failed, using semantic search: %v", err)
		return DateRange{}, false
	}
	switch v := c.(type) {
	case DateQuery:
		return v.Range, true
	default:
		return DateRange{}, false
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
