package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{DB: db}, mock
}

func TestFindExerciseDefinitionMissing(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(findDefinitionSQL)).
		WithArgs("user-1", "Bench Press").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "muscle_group", "created_at", "updated_at"}))

	_, ok, err := st.FindExerciseDefinition(context.Background(), "user-1", "  Bench Press ")
	if err != nil {
		t.Fatalf("FindExerciseDefinition: %v", err)
	}
	if ok {
		t.Fatalf("expected no definition")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateExerciseDefinitionStoresVector(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now()
	mg := "Chest"
	mock.ExpectQuery(regexp.QuoteMeta(createDefinitionSQL)).
		WithArgs("user-1", "Bench Press", "Chest", "[0.5,0.25]").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "muscle_group", "created_at", "updated_at"}).
			AddRow("def-1", "user-1", "Bench Press", "Chest", now, now))

	def, err := st.CreateExerciseDefinition(context.Background(), "user-1", "Bench Press", &mg, []float32{0.5, 0.25})
	if err != nil {
		t.Fatalf("CreateExerciseDefinition: %v", err)
	}
	if def.ID != "def-1" || def.MuscleGroup == nil || *def.MuscleGroup != "Chest" {
		t.Fatalf("unexpected definition: %+v", def)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateExerciseDefinitionConflict(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(createDefinitionSQL)).
		WithArgs("user-1", "Squat", nil, nil).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := st.CreateExerciseDefinition(context.Background(), "user-1", "Squat", nil, nil)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestGetExerciseDefinitionNotFound(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(getDefinitionSQL)).
		WithArgs("def-x", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "muscle_group", "created_at", "updated_at"}))

	_, err := st.GetExerciseDefinition(context.Background(), "user-1", "def-x")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLogExercise(t *testing.T) {
	st, mock := newMockStore(t)
	day := time.Date(2025, 11, 8, 15, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(upsertSessionSQL)).
		WithArgs("user-1", "2025-11-08").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("session-1"))
	mock.ExpectQuery(regexp.QuoteMeta(nextExerciseOrderSQL)).
		WithArgs("session-1").
		WillReturnRows(sqlmock.NewRows([]string{"order"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(insertSessionExerciseSQL)).
		WithArgs("user-1", "session-1", "def-1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("wse-1"))
	mock.ExpectExec(regexp.QuoteMeta(insertSetSQL)).
		WithArgs("user-1", "wse-1", 1, 10, 80.0, "[1,0]").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertSetSQL)).
		WithArgs("user-1", "wse-1", 2, 8, 82.5, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	out, err := st.LogExercise(context.Background(), LogExerciseInput{
		UserID:               "user-1",
		ExerciseDefinitionID: "def-1",
		WorkoutDate:          day,
		Sets: []SetInput{
			{SetNumber: 1, Reps: 10, WeightKg: 80, Vector: []float32{1, 0}},
			{SetNumber: 2, Reps: 8, WeightKg: 82.5},
		},
	})
	if err != nil {
		t.Fatalf("LogExercise: %v", err)
	}
	if out.ID != "wse-1" || out.SessionID != "session-1" || out.ExerciseOrder != 3 {
		t.Fatalf("unexpected result: %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLogExerciseRollsBackOnDuplicateSet(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(upsertSessionSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("session-1"))
	mock.ExpectQuery(regexp.QuoteMeta(nextExerciseOrderSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"order"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(insertSessionExerciseSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("wse-1"))
	mock.ExpectExec(regexp.QuoteMeta(insertSetSQL)).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := st.LogExercise(context.Background(), LogExerciseInput{
		UserID:               "user-1",
		ExerciseDefinitionID: "def-1",
		WorkoutDate:          time.Now(),
		Sets:                 []SetInput{{SetNumber: 1, Reps: 5, WeightKg: 100}},
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListSessions(t *testing.T) {
	st, mock := newMockStore(t)
	day := time.Date(2025, 11, 5, 0, 0, 0, 0, time.UTC)
	from := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(listSessionsSQL)).
		WithArgs("user-1", "2025-11-01", nil, "squat", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "workout_date", "created_at", "exercise_count", "total_sets", "total_volume_kg", "muscle_groups"}).
			AddRow("session-1", day, day, 2, 6, 2400.0, "Legs, Back"))

	sessions, err := st.ListSessions(context.Background(), SessionFilter{UserID: "user-1", Query: " squat ", From: from})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(sessions))
	}
	got := sessions[0]
	if got.ExerciseCount != 2 || got.TotalSets != 6 || got.TotalVolumeKg != 2400 || got.MuscleGroups != "Legs, Back" {
		t.Fatalf("unexpected summary: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetSessionDetailGroupsSets(t *testing.T) {
	st, mock := newMockStore(t)
	day := time.Date(2025, 11, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(sessionHeaderSQL)).
		WithArgs("session-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "workout_date", "created_at"}).AddRow("session-1", day, day))
	mock.ExpectQuery(regexp.QuoteMeta(sessionExercisesSQL)).
		WithArgs("session-1").
		WillReturnRows(sqlmock.NewRows([]string{"e_id", "order", "def_id", "name", "mg", "set_id", "set_number", "reps", "weight"}).
			AddRow("wse-1", 1, "def-1", "Squat", "Legs", "set-1", 1, 5, 100.0).
			AddRow("wse-1", 1, "def-1", "Squat", "Legs", "set-2", 2, 5, 105.0).
			AddRow("wse-2", 2, "def-2", "Plank", "", nil, nil, nil, nil))

	detail, err := st.GetSessionDetail(context.Background(), "user-1", "session-1")
	if err != nil {
		t.Fatalf("GetSessionDetail: %v", err)
	}
	if len(detail.Exercises) != 2 {
		t.Fatalf("expected 2 exercises, got %d", len(detail.Exercises))
	}
	if len(detail.Exercises[0].Sets) != 2 || detail.Exercises[0].Sets[1].WeightKg != 105 {
		t.Fatalf("unexpected sets: %+v", detail.Exercises[0].Sets)
	}
	if len(detail.Exercises[1].Sets) != 0 {
		t.Fatalf("expected no sets for second exercise, got %+v", detail.Exercises[1].Sets)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetSessionDetailNotFound(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(sessionHeaderSQL)).
		WithArgs("session-x", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "workout_date", "created_at"}))

	if _, err := st.GetSessionDetail(context.Background(), "user-1", "session-x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchExercises(t *testing.T) {
	st, mock := newMockStore(t)
	last := time.Date(2025, 11, 7, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(searchExercisesSQL)).
		WithArgs("user-1", "curl", 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "mg", "times", "last", "max"}).
			AddRow("def-1", "Bicep Curl", "Arms", 4, last, 20.0).
			AddRow("def-2", "Hammer Curl", "Arms", 0, nil, 0.0))

	res, err := st.SearchExercises(context.Background(), "user-1", "curl", 0)
	if err != nil {
		t.Fatalf("SearchExercises: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res))
	}
	if res[0].LastPerformed == nil || !res[0].LastPerformed.Equal(last) {
		t.Fatalf("unexpected last performed: %v", res[0].LastPerformed)
	}
	if res[1].LastPerformed != nil {
		t.Fatalf("expected nil last performed for unused exercise")
	}
}
