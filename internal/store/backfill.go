package store

import (
	"context"
	"fmt"
)

// PendingSet is a set stored without an embedding.
type PendingSet struct {
	ID           string
	ExerciseName string
	Reps         int
	WeightKg     float64
}

// Claiming stamps embedding_attempted_at so rows that keep failing move behind rows never tried.
const setsMissingEmbeddingsSQL = `
WITH claimed AS (
    UPDATE workout_sets SET embedding_attempted_at = NOW()
    WHERE id IN (
        SELECT id FROM workout_sets
        WHERE embedding IS NULL AND deleted_at IS NULL
        ORDER BY embedding_attempted_at ASC NULLS FIRST, created_at ASC
        LIMIT $1
        FOR UPDATE SKIP LOCKED)
    RETURNING id, session_exercise_id, reps, weight_kg, created_at
)
SELECT c.id, d.name, c.reps, c.weight_kg
FROM claimed c
JOIN workout_session_exercises e ON e.id = c.session_exercise_id
JOIN exercise_definitions d ON d.id = e.exercise_definition_id
ORDER BY c.created_at ASC`

// SetsMissingEmbeddings claims up to limit sets that still need a vector, least recently
// attempted first.
func (s *Store) SetsMissingEmbeddings(ctx context.Context, limit int) ([]PendingSet, error) {
	rows, err := s.DB.QueryContext(ctx, setsMissingEmbeddingsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PendingSet
	for rows.Next() {
		var p PendingSet
		if err := rows.Scan(&p.ID, &p.ExerciseName, &p.Reps, &p.WeightKg); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const updateSetEmbeddingSQL = `UPDATE workout_sets SET embedding=$2::vector WHERE id=$1`

func (s *Store) UpdateSetEmbedding(ctx context.Context, id string, vector []float32) error {
	return s.updateEmbedding(ctx, updateSetEmbeddingSQL, id, vector)
}

const definitionsMissingEmbeddingsSQL = `
UPDATE exercise_definitions SET embedding_attempted_at = NOW()
WHERE id IN (
    SELECT id FROM exercise_definitions
    WHERE embedding IS NULL AND deleted_at IS NULL
    ORDER BY embedding_attempted_at ASC NULLS FIRST, created_at ASC
    LIMIT $1
    FOR UPDATE SKIP LOCKED)
RETURNING id, user_id, name, muscle_group, created_at, updated_at`

// DefinitionsMissingEmbeddings claims up to limit definitions that still need a vector, least
// recently attempted first.
func (s *Store) DefinitionsMissingEmbeddings(ctx context.Context, limit int) ([]ExerciseDefinition, error) {
	rows, err := s.DB.QueryContext(ctx, definitionsMissingEmbeddingsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ExerciseDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

const updateDefinitionEmbeddingSQL = `UPDATE exercise_definitions SET embedding=$2::vector, updated_at=NOW() WHERE id=$1`

func (s *Store) UpdateDefinitionEmbedding(ctx context.Context, id string, vector []float32) error {
	return s.updateEmbedding(ctx, updateDefinitionEmbeddingSQL, id, vector)
}

func (s *Store) updateEmbedding(ctx context.Context, query, id string, vector []float32) error {
	lit, err := encodeVectorLiteral(vector)
	if err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, query, id, lit)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("embedding target %s: %w", id, ErrNotFound)
	}
	return nil
}
