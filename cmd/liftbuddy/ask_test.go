package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/liftbuddy/internal/rag"
)

func TestPrintResult(t *testing.T) {
	dr, err := rag.NewDateRange("2025-11-03", "2025-11-08")
	if err != nil {
		t.Fatalf("NewDateRange: %v", err)
	}
	sim := 0.8123
	var buf bytes.Buffer
	printResult(&buf, rag.Result{
		Answer: "Solid week!",
		Branch: rag.BranchDateRange,
		Range:  &dr,
		Records: []rag.WorkoutRecord{
			{WorkoutDate: time.Date(2025, 11, 5, 0, 0, 0, 0, time.UTC), ExerciseName: "Squat", Reps: 5, WeightKg: 100, Similarity: &sim},
		},
	})
	out := buf.String()
	for _, want := range []string{
		"branch:  date_range",
		"range:   2025-11-03..2025-11-08",
		"records: 1",
		"On November 5, 2025, you did Squat for 5 reps at 100kg. (similarity 0.812)",
		"Solid week!",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
