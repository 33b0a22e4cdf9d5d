// Package rag answers natural-language questions about a user's workout history by classifying
// the question, retrieving matching sets and grounding a generated answer in them.
package rag

import (
	"fmt"
	"time"
)

// FallbackAnswer is returned verbatim whenever there is nothing to ground an answer in.
const FallbackAnswer = "I couldn't find any data for that, please try asking another question."

const dateLayout = "2006-01-02"

// DateRange is an inclusive span of calendar dates. Start and End carry no time of day.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange parses two YYYY-MM-DD dates and checks start <= end.
func NewDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("start_date %q: %w", start, ErrInvalidRange)
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("end_date %q: %w", end, ErrInvalidRange)
	}
	if s.After(e) {
		return DateRange{}, fmt.Errorf("start %s after end %s: %w", start, end, ErrInvalidRange)
	}
	return DateRange{Start: s, End: e}, nil
}

func (r DateRange) StartDate() string { return r.Start.Format(dateLayout) }
func (r DateRange) EndDate() string   { return r.End.Format(dateLayout) }

func (r DateRange) String() string {
	return r.StartDate() + ".." + r.EndDate()
}

// WorkoutRecord is one retrieved set. Similarity is set only by semantic retrieval.
type WorkoutRecord struct {
	WorkoutDate  time.Time
	ExerciseName string
	Reps         int
	WeightKg     float64
	Similarity   *float64
}

// Branch names the retrieval path a query took.
type Branch string

const (
	BranchDateRange Branch = "date_range"
	BranchSemantic  Branch = "semantic"
)

// Result is the outcome of HandleQuery. Range is nil on the semantic branch.
type Result struct {
	Answer  string
	Branch  Branch
	Range   *DateRange
	Records []WorkoutRecord
}
