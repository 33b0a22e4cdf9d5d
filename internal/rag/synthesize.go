package rag

import (
	"strconv"
	"strings"
	"time"
)

// ContextSeparator delimits facts inside the context block.
const ContextSeparator = "\n---\n"

const contextDateLayout = "January 2, 2006"

// Synthesize renders one sentence per record, in input order. No records yields "".
func Synthesize(records []WorkoutRecord) string {
	if len(records) == 0 {
		return ""
	}
	sentences := make([]string, 0, len(records))
	for _, rec := range records {
		sentences = append(sentences, Sentence(rec))
	}
	return strings.Join(sentences, ContextSeparator)
}

// Sentence states date, exercise, reps and weight of one record.
func Sentence(rec WorkoutRecord) string {
	return "On " + FormatDate(rec.WorkoutDate) + ", you did " + rec.ExerciseName +
		" for " + strconv.Itoa(rec.Reps) + " reps at " + FormatWeight(rec.WeightKg) + "kg."
}

// FormatDate renders a calendar date independently of server locale and timezone.
func FormatDate(t time.Time) string {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Format(contextDateLayout)
}

// FormatWeight prints the shortest exact decimal, so 80 is "80" and 82.5 is "82.5".
func FormatWeight(kg float64) string {
	return strconv.FormatFloat(kg, 'f', -1, 64)
}

// SetDocument is the text embedded for a stored set. Semantic queries are compared against it.
func SetDocument(exerciseName string, reps int, weightKg float64) string {
	return exerciseName + ": " + strconv.Itoa(reps) + " reps at " + FormatWeight(weightKg) + "kg"
}

// DefinitionDocument is the text embedded for an exercise definition.
func DefinitionDocument(name string, muscleGroup *string) string {
	mg := "N/A"
	if muscleGroup != nil && strings.TrimSpace(*muscleGroup) != "" {
		mg = strings.TrimSpace(*muscleGroup)
	}
	return name + ". Muscle group: " + mg + "."
}
