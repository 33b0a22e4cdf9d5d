package store

import (
	"context"
	"fmt"
	"time"
)

// WorkoutRow is one performed set joined with its session date and exercise name.
type WorkoutRow struct {
	SetID        string
	WorkoutDate  time.Time
	ExerciseName string
	SetNumber    int
	Reps         int
	WeightKg     float64
	// Similarity is only populated by MatchWorkouts.
	Similarity float64
}

const workoutsByDateRangeSQL = `
SELECT ws.id, s.workout_date, d.name, ws.set_number, ws.reps, ws.weight_kg
FROM workout_sets ws
JOIN workout_session_exercises e ON e.id = ws.session_exercise_id AND e.deleted_at IS NULL
JOIN workout_sessions s ON s.id = e.session_id AND s.deleted_at IS NULL
JOIN exercise_definitions d ON d.id = e.exercise_definition_id
WHERE ws.user_id = $1 AND s.user_id = $1 AND ws.deleted_at IS NULL
  AND s.workout_date BETWEEN $2::date AND $3::date
ORDER BY s.workout_date ASC, e.exercise_order ASC, ws.set_number ASC
LIMIT $4`

// WorkoutsByDateRange returns the user's sets performed between from and to, both inclusive.
func (s *Store) WorkoutsByDateRange(ctx context.Context, userID string, from, to time.Time, limit int) ([]WorkoutRow, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	rows, err := s.DB.QueryContext(ctx, workoutsByDateRangeSQL, userID, from.Format(dateLayout), to.Format(dateLayout), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WorkoutRow
	for rows.Next() {
		var r WorkoutRow
		if err := rows.Scan(&r.SetID, &r.WorkoutDate, &r.ExerciseName, &r.SetNumber, &r.Reps, &r.WeightKg); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const matchWorkoutsSQL = `
SELECT ws.id, s.workout_date, d.name, ws.set_number, ws.reps, ws.weight_kg,
  1 - (ws.embedding <=> $2::vector) AS similarity
FROM workout_sets ws
JOIN workout_session_exercises e ON e.id = ws.session_exercise_id AND e.deleted_at IS NULL
JOIN workout_sessions s ON s.id = e.session_id AND s.deleted_at IS NULL
JOIN exercise_definitions d ON d.id = e.exercise_definition_id
WHERE ws.user_id = $1 AND s.user_id = $1 AND ws.deleted_at IS NULL AND ws.embedding IS NOT NULL
  AND 1 - (ws.embedding <=> $2::vector) >= $3
ORDER BY ws.embedding <=> $2::vector ASC, s.workout_date DESC
LIMIT $4`

// MatchWorkouts returns up to limit sets whose cosine similarity to vector is at least threshold,
// most similar first.
func (s *Store) MatchWorkouts(ctx context.Context, userID string, vector []float32, threshold float64, limit int) ([]WorkoutRow, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	vecLiteral, err := encodeVectorLiteral(vector)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, matchWorkoutsSQL, userID, vecLiteral, threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WorkoutRow
	for rows.Next() {
		var r WorkoutRow
		if err := rows.Scan(&r.SetID, &r.WorkoutDate, &r.ExerciseName, &r.SetNumber, &r.Reps, &r.WeightKg, &r.Similarity); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
