package rag

import (
	"context"
	"log"
	"strings"
	"time"
)

const (
	DefaultMatchThreshold = 0.5
	DefaultMatchCount     = 5
)

// Options tunes the pipeline.
type Options struct {
	MatchThreshold float64
	MatchCount     int
	// Location decides which calendar day "today" is.
	Location *time.Location
	Now      func() time.Time
}

// Pipeline runs classify, retrieve, synthesize and generate for one query.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	classifier Classifier
	retriever  *Retriever
	answerer   *AnswerGenerator
	threshold  float64
	topK       int
	loc        *time.Location
	now        func() time.Time
	logger     *log.Logger
}

func NewPipeline(classifier Classifier, retriever *Retriever, answerer *AnswerGenerator, opts Options) *Pipeline {
	if opts.MatchThreshold <= 0 {
		opts.MatchThreshold = DefaultMatchThreshold
	}
	if opts.MatchCount <= 0 {
		opts.MatchCount = DefaultMatchCount
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		classifier: classifier,
		retriever:  retriever,
		answerer:   answerer,
		threshold:  opts.MatchThreshold,
		topK:       opts.MatchCount,
		loc:        opts.Location,
		now:        opts.Now,
		logger:     log.New(log.Writer(), "[RAG] ", log.LstdFlags),
	}
}

// Today is the current calendar date in the pipeline's location.
func (p *Pipeline) Today() time.Time {
	t := p.now().In(p.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// HandleQuery answers query from userID's workout history. Classification problems fall back to
// semantic search; retrieval and generation failures are returned as *Error.
func (p *Pipeline) HandleQuery(ctx context.Context, userID, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, ErrEmptyQuery
	}
	today := p.Today()

	var (
		res Result
		err error
	)
	if dr, ok := p.classifier.Extract(ctx, query, today); ok {
		p.logger.Printf("date query for user %s: %s", userID, dr)
		res.Branch = BranchDateRange
		res.Range = &dr
		res.Records, err = p.retriever.ByDateRange(ctx, userID, dr)
	} else {
		res.Branch = BranchSemantic
		res.Records, err = p.retriever.BySimilarity(ctx, userID, query, p.threshold, p.topK)
	}
	if err != nil {
		recordFailure(err)
		return Result{}, err
	}
	retrievedRecords.Observe(float64(len(res.Records)))
	p.logger.Printf("%s retrieval for user %s found %d records", res.Branch, userID, len(res.Records))

	res.Answer, err = p.answerer.Answer(ctx, query, Synthesize(res.Records), today)
	if err != nil {
		recordFailure(err)
		return Result{}, err
	}
	queriesTotal.WithLabelValues(string(res.Branch)).Inc()
	return res, nil
}
