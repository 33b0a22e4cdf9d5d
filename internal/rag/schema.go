package rag

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "embed"

	"github.com/mohammad-safakhou/liftbuddy/internal/llm"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed date_range_schema.json
var dateRangeSchemaJSON string

var (
	compileOnce     sync.Once
	dateRangeSchema *jsonschema.Schema
	compileErr      error
)

// DateRangeSchema is the structured-output contract sent to the provider.
func DateRangeSchema() llm.Schema {
	return llm.Schema{Name: "date_range_classification", Definition: json.RawMessage(dateRangeSchemaJSON)}
}

func compiledDateRangeSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("date_range_schema.json", strings.NewReader(dateRangeSchemaJSON)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("date_range_schema.json")
		if err != nil {
			compileErr = fmt.Errorf("compile date range schema: %w", err)
			return
		}
		dateRangeSchema = schema
	})
	return dateRangeSchema, compileErr
}

// Classification is the provider's verdict: either DateQuery or NotDateQuery.
type Classification interface {
	isClassification()
}

// DateQuery is a time-scoped question with a resolved range.
type DateQuery struct {
	Range DateRange
}

// NotDateQuery routes the question to semantic search.
type NotDateQuery struct{}

func (DateQuery) isClassification()    {}
func (NotDateQuery) isClassification() {}

type rawClassification struct {
	IsDateQuery bool    `json:"is_date_query"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
}

// ParseClassification validates a structured response against the schema and turns it into a
// Classification. A date query without both dates, or with an invalid range, is an error.
func ParseClassification(data []byte) (Classification, error) {
	schema, err := compiledDateRangeSchema()
	if err != nil {
		return nil, err
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("classification is not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("classification does not match schema: %w", err)
	}
	var raw rawClassification
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}
	if !raw.IsDateQuery {
		return NotDateQuery{}, nil
	}
	if raw.StartDate == nil || raw.EndDate == nil || strings.TrimSpace(*raw.StartDate) == "" || strings.TrimSpace(*raw.EndDate) == "" {
		return nil, ErrMissingDates
	}
	r, err := NewDateRange(strings.TrimSpace(*raw.StartDate), strings.TrimSpace(*raw.EndDate))
	if err != nil {
		return nil, err
	}
	return DateQuery{Range: r}, nil
}
