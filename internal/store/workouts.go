package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ExerciseDefinition is a named exercise owned by a user.
type ExerciseDefinition struct {
	ID          string
	UserID      string
	Name        string
	MuscleGroup *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SetInput is one performed set together with its optional semantic vector.
type SetInput struct {
	SetNumber int
	Reps      int
	WeightKg  float64
	Vector    []float32
}

// LogExerciseInput describes an exercise performed on a given day.
type LogExerciseInput struct {
	UserID               string
	ExerciseDefinitionID string
	WorkoutDate          time.Time
	Sets                 []SetInput
}

// LoggedExercise identifies the rows written by LogExercise.
type LoggedExercise struct {
	ID            string
	SessionID     string
	ExerciseOrder int
}

// SessionFilter narrows ListSessions. Zero dates are ignored.
type SessionFilter struct {
	UserID string
	Query  string
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// SessionSummary aggregates one workout session.
type SessionSummary struct {
	ID            string
	WorkoutDate   time.Time
	CreatedAt     time.Time
	ExerciseCount int
	TotalSets     int
	TotalVolumeKg float64
	MuscleGroups  string
}

// SessionSet is a set inside SessionDetail.
type SessionSet struct {
	ID        string
	SetNumber int
	Reps      int
	WeightKg  float64
}

// SessionExercise is an exercise inside SessionDetail.
type SessionExercise struct {
	ID                   string
	ExerciseDefinitionID string
	Name                 string
	MuscleGroup          string
	Order                int
	Sets                 []SessionSet
}

// SessionDetail is a full session with its exercises ordered and sets sorted by set number.
type SessionDetail struct {
	ID          string
	WorkoutDate time.Time
	CreatedAt   time.Time
	Exercises   []SessionExercise
}

// ExerciseSearchResult summarises how often an exercise was performed.
type ExerciseSearchResult struct {
	ID             string
	Name           string
	MuscleGroup    string
	TimesPerformed int
	LastPerformed  *time.Time
	MaxWeightKg    float64
}

const findDefinitionSQL = `
SELECT id, user_id, name, muscle_group, created_at, updated_at
FROM exercise_definitions
WHERE user_id=$1 AND lower(name)=lower($2) AND deleted_at IS NULL
LIMIT 1`

// FindExerciseDefinition looks up a definition by case-insensitive name.
func (s *Store) FindExerciseDefinition(ctx context.Context, userID, name string) (ExerciseDefinition, bool, error) {
	def, err := scanDefinition(s.DB.QueryRowContext(ctx, findDefinitionSQL, userID, strings.TrimSpace(name)))
	if errors.Is(err, sql.ErrNoRows) {
		return ExerciseDefinition{}, false, nil
	}
	if err != nil {
		return ExerciseDefinition{}, false, err
	}
	return def, true, nil
}

const createDefinitionSQL = `
INSERT INTO exercise_definitions (user_id, name, muscle_group, embedding)
VALUES ($1,$2,$3,$4::vector)
RETURNING id, user_id, name, muscle_group, created_at, updated_at`

// CreateExerciseDefinition inserts a definition. A nil vector stores a NULL embedding.
func (s *Store) CreateExerciseDefinition(ctx context.Context, userID, name string, muscleGroup *string, vector []float32) (ExerciseDefinition, error) {
	vec, err := nullableVector(vector)
	if err != nil {
		return ExerciseDefinition{}, err
	}
	var mg sql.NullString
	if muscleGroup != nil {
		mg = sql.NullString{String: *muscleGroup, Valid: true}
	}
	def, err := scanDefinition(s.DB.QueryRowContext(ctx, createDefinitionSQL, userID, strings.TrimSpace(name), mg, vec))
	if isUniqueViolation(err) {
		return ExerciseDefinition{}, ErrConflict
	}
	return def, err
}

const getDefinitionSQL = `
SELECT id, user_id, name, muscle_group, created_at, updated_at
FROM exercise_definitions
WHERE id=$1 AND user_id=$2 AND deleted_at IS NULL`

func (s *Store) GetExerciseDefinition(ctx context.Context, userID, id string) (ExerciseDefinition, error) {
	def, err := scanDefinition(s.DB.QueryRowContext(ctx, getDefinitionSQL, id, userID))
	if err != nil {
		return ExerciseDefinition{}, wrapNotFound(err, "exercise definition")
	}
	return def, nil
}

func scanDefinition(row interface{ Scan(dest ...any) error }) (ExerciseDefinition, error) {
	var (
		def ExerciseDefinition
		mg  sql.NullString
	)
	if err := row.Scan(&def.ID, &def.UserID, &def.Name, &mg, &def.CreatedAt, &def.UpdatedAt); err != nil {
		return ExerciseDefinition{}, err
	}
	if mg.Valid {
		v := mg.String
		def.MuscleGroup = &v
	}
	return def, nil
}

// The no-op update makes the upsert return the existing row and lock it, which serialises
// exercise_order allocation for concurrent writes to the same day.
const upsertSessionSQL = `
INSERT INTO workout_sessions (user_id, workout_date) VALUES ($1,$2)
ON CONFLICT (user_id, workout_date) WHERE deleted_at IS NULL
DO UPDATE SET workout_date = EXCLUDED.workout_date
RETURNING id`

const nextExerciseOrderSQL = `
SELECT COALESCE(MAX(exercise_order), 0) + 1
FROM workout_session_exercises
WHERE session_id=$1 AND deleted_at IS NULL`

const insertSessionExerciseSQL = `
INSERT INTO workout_session_exercises (user_id, session_id, exercise_definition_id, exercise_order)
VALUES ($1,$2,$3,$4)
RETURNING id`

const insertSetSQL = `
INSERT INTO workout_sets (user_id, session_exercise_id, set_number, reps, weight_kg, embedding)
VALUES ($1,$2,$3,$4,$5,$6::vector)`

// LogExercise appends an exercise with its sets to the user's session for the given day,
// creating the session when it does not exist yet.
func (s *Store) LogExercise(ctx context.Context, in LogExerciseInput) (out LoggedExercise, err error) {
	if in.UserID == "" || in.ExerciseDefinitionID == "" {
		return LoggedExercise{}, fmt.Errorf("user_id and exercise_definition_id required")
	}
	if len(in.Sets) == 0 {
		return LoggedExercise{}, fmt.Errorf("at least one set required")
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return LoggedExercise{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	date := in.WorkoutDate.Format(dateLayout)
	if err = tx.QueryRowContext(ctx, upsertSessionSQL, in.UserID, date).Scan(&out.SessionID); err != nil {
		return LoggedExercise{}, fmt.Errorf("upsert session: %w", err)
	}
	if err = tx.QueryRowContext(ctx, nextExerciseOrderSQL, out.SessionID).Scan(&out.ExerciseOrder); err != nil {
		return LoggedExercise{}, fmt.Errorf("next exercise order: %w", err)
	}
	if err = tx.QueryRowContext(ctx, insertSessionExerciseSQL, in.UserID, out.SessionID, in.ExerciseDefinitionID, out.ExerciseOrder).Scan(&out.ID); err != nil {
		return LoggedExercise{}, fmt.Errorf("insert session exercise: %w", err)
	}
	for _, set := range in.Sets {
		vec, verr := nullableVector(set.Vector)
		if verr != nil {
			err = verr
			return LoggedExercise{}, err
		}
		if _, err = tx.ExecContext(ctx, insertSetSQL, in.UserID, out.ID, set.SetNumber, set.Reps, set.WeightKg, vec); err != nil {
			if isUniqueViolation(err) {
				err = fmt.Errorf("duplicate set number %d: %w", set.SetNumber, ErrConflict)
			}
			return LoggedExercise{}, err
		}
	}
	return out, nil
}

const listSessionsSQL = `
SELECT s.id, s.workout_date, s.created_at,
  COUNT(DISTINCT e.id) AS exercise_count,
  COUNT(ws.id) AS total_sets,
  COALESCE(SUM(ws.reps * ws.weight_kg), 0) AS total_volume_kg,
  COALESCE(string_agg(DISTINCT d.muscle_group, ', '), '') AS muscle_groups
FROM workout_sessions s
LEFT JOIN workout_session_exercises e ON e.session_id = s.id AND e.deleted_at IS NULL
LEFT JOIN exercise_definitions d ON d.id = e.exercise_definition_id
LEFT JOIN workout_sets ws ON ws.session_exercise_id = e.id AND ws.deleted_at IS NULL
WHERE s.user_id = $1 AND s.deleted_at IS NULL
  AND ($2::date IS NULL OR s.workout_date >= $2::date)
  AND ($3::date IS NULL OR s.workout_date <= $3::date)
  AND ($4 = '' OR EXISTS (
    SELECT 1 FROM workout_session_exercises e2
    JOIN exercise_definitions d2 ON d2.id = e2.exercise_definition_id
    WHERE e2.session_id = s.id AND e2.deleted_at IS NULL
      AND (d2.name ILIKE '%' || $4 || '%' OR COALESCE(d2.muscle_group, '') ILIKE '%' || $4 || '%')
  ))
GROUP BY s.id
ORDER BY s.workout_date DESC
LIMIT $5 OFFSET $6`

// ListSessions returns the user's sessions newest first.
func (s *Store) ListSessions(ctx context.Context, f SessionFilter) ([]SessionSummary, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	rows, err := s.DB.QueryContext(ctx, listSessionsSQL, f.UserID, nullDate(f.From), nullDate(f.To), strings.TrimSpace(f.Query), f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []SessionSummary{}
	for rows.Next() {
		var sum SessionSummary
		if err := rows.Scan(&sum.ID, &sum.WorkoutDate, &sum.CreatedAt, &sum.ExerciseCount, &sum.TotalSets, &sum.TotalVolumeKg, &sum.MuscleGroups); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// WeekSessions returns the sessions between from and to inclusive.
func (s *Store) WeekSessions(ctx context.Context, userID string, from, to time.Time) ([]SessionSummary, error) {
	return s.ListSessions(ctx, SessionFilter{UserID: userID, From: from, To: to, Limit: 7})
}

const sessionHeaderSQL = `
SELECT id, workout_date, created_at
FROM workout_sessions
WHERE id=$1 AND user_id=$2 AND deleted_at IS NULL`

const sessionExercisesSQL = `
SELECT e.id, e.exercise_order, e.exercise_definition_id, d.name, COALESCE(d.muscle_group, ''),
  ws.id, ws.set_number, ws.reps, ws.weight_kg
FROM workout_session_exercises e
JOIN exercise_definitions d ON d.id = e.exercise_definition_id
LEFT JOIN workout_sets ws ON ws.session_exercise_id = e.id AND ws.deleted_at IS NULL
WHERE e.session_id = $1 AND e.deleted_at IS NULL
ORDER BY e.exercise_order ASC, ws.set_number ASC`

// GetSessionDetail loads a session owned by the user.
func (s *Store) GetSessionDetail(ctx context.Context, userID, sessionID string) (SessionDetail, error) {
	var d SessionDetail
	if err := s.DB.QueryRowContext(ctx, sessionHeaderSQL, sessionID, userID).Scan(&d.ID, &d.WorkoutDate, &d.CreatedAt); err != nil {
		return SessionDetail{}, wrapNotFound(err, "session")
	}
	rows, err := s.DB.QueryContext(ctx, sessionExercisesSQL, sessionID)
	if err != nil {
		return SessionDetail{}, err
	}
	defer rows.Close()
	d.Exercises = []SessionExercise{}
	for rows.Next() {
		var (
			ex       SessionExercise
			setID    sql.NullString
			setNum   sql.NullInt64
			reps     sql.NullInt64
			weightKg sql.NullFloat64
		)
		if err := rows.Scan(&ex.ID, &ex.Order, &ex.ExerciseDefinitionID, &ex.Name, &ex.MuscleGroup, &setID, &setNum, &reps, &weightKg); err != nil {
			return SessionDetail{}, err
		}
		n := len(d.Exercises)
		if n == 0 || d.Exercises[n-1].ID != ex.ID {
			ex.Sets = []SessionSet{}
			d.Exercises = append(d.Exercises, ex)
			n++
		}
		if setID.Valid {
			d.Exercises[n-1].Sets = append(d.Exercises[n-1].Sets, SessionSet{
				ID:        setID.String,
				SetNumber: int(setNum.Int64),
				Reps:      int(reps.Int64),
				WeightKg:  weightKg.Float64,
			})
		}
	}
	return d, rows.Err()
}

const searchExercisesSQL = `
SELECT d.id, d.name, COALESCE(d.muscle_group, ''),
  COUNT(DISTINCT e.id) AS times_performed,
  MAX(s.workout_date) AS last_performed,
  COALESCE(MAX(ws.weight_kg), 0) AS max_weight_kg
FROM exercise_definitions d
LEFT JOIN workout_session_exercises e ON e.exercise_definition_id = d.id AND e.deleted_at IS NULL
LEFT JOIN workout_sessions s ON s.id = e.session_id AND s.deleted_at IS NULL
LEFT JOIN workout_sets ws ON ws.session_exercise_id = e.id AND ws.deleted_at IS NULL
WHERE d.user_id = $1 AND d.deleted_at IS NULL
  AND (d.name ILIKE '%' || $2 || '%' OR COALESCE(d.muscle_group, '') ILIKE '%' || $2 || '%')
GROUP BY d.id
ORDER BY last_performed DESC NULLS LAST, d.name ASC
LIMIT $3`

// SearchExercises matches the user's exercise definitions by name or muscle group.
func (s *Store) SearchExercises(ctx context.Context, userID, query string, limit int) ([]ExerciseSearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, searchExercisesSQL, userID, strings.TrimSpace(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ExerciseSearchResult{}
	for rows.Next() {
		var (
			res  ExerciseSearchResult
			last sql.NullTime
		)
		if err := rows.Scan(&res.ID, &res.Name, &res.MuscleGroup, &res.TimesPerformed, &last, &res.MaxWeightKg); err != nil {
			return nil, err
		}
		if last.Valid {
			t := last.Time
			res.LastPerformed = &t
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func nullDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}
