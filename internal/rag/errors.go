package rag

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyQuery = errors.New("query is required")
	// ErrMissingDates marks a date classification that omitted start_date or end_date.
	ErrMissingDates = errors.New("date query without start_date/end_date")
	ErrInvalidRange = errors.New("invalid date range")
)

// Kind classifies pipeline failures for logging and metrics.
type Kind string

const (
	KindClassification Kind = "classification"
	KindRetrieval      Kind = "retrieval"
	KindGeneration     Kind = "generation"
)

// Error carries the failing stage alongside the cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failure in %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the failure kind of err, if it is a pipeline error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
