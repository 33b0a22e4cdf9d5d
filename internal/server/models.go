package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// HTTPError is the error body returned outside the workouts envelope.
type HTTPError struct {
	Error string `json:"error"`
}

// Envelope wraps every workouts and search response.
type Envelope struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
	Data    any     `json:"data"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// IDResponse is a generic id response wrapper.
type IDResponse struct {
	ID string `json:"id"`
}

type InfoResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ExerciseDefinitionRequest creates (or finds) an exercise by name.
type ExerciseDefinitionRequest struct {
	Name        string  `json:"name"`
	MuscleGroup *string `json:"muscle_group"`
}

type ExerciseDefinitionResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MuscleGroup *string   `json:"muscle_group"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LogExerciseRequest appends an exercise with its sets to today's session.
type LogExerciseRequest struct {
	ExerciseDefinitionID string       `json:"exercise_definition_id"`
	Sets                 []SetRequest `json:"sets"`
}

// SetRequest accepts numbers either as JSON numbers or as numeric strings.
type SetRequest struct {
	Set      FlexNumber `json:"set"`
	Reps     FlexNumber `json:"reps"`
	WeightKg FlexNumber `json:"weight_kg"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

type SessionSummaryResponse struct {
	ID            string    `json:"id"`
	WorkoutDate   string    `json:"workout_date"`
	CreatedAt     time.Time `json:"created_at"`
	ExerciseCount int       `json:"exercise_count"`
	TotalSets     int       `json:"total_sets"`
	TotalVolumeKg float64   `json:"total_volume_kg"`
	MuscleGroups  string    `json:"muscle_groups"`
}

type SessionsResponse struct {
	Sessions   []SessionSummaryResponse `json:"sessions"`
	Pagination Pagination               `json:"pagination"`
}

type SessionSetResponse struct {
	ID        string  `json:"id"`
	SetNumber int     `json:"set_number"`
	Reps      int     `json:"reps"`
	WeightKg  float64 `json:"weight_kg"`
}

type SessionExerciseResponse struct {
	ID                   string               `json:"id"`
	ExerciseDefinitionID string               `json:"exercise_definition_id"`
	Name                 string               `json:"name"`
	MuscleGroup          string               `json:"muscle_group"`
	Order                int                  `json:"order"`
	Sets                 []SessionSetResponse `json:"sets"`
}

type SessionDetailResponse struct {
	ID          string                    `json:"id"`
	WorkoutDate string                    `json:"workout_date"`
	CreatedAt   time.Time                 `json:"created_at"`
	Exercises   []SessionExerciseResponse `json:"exercises"`
}

type ExerciseSearchResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	MuscleGroup    string  `json:"muscle_group"`
	TimesPerformed int     `json:"times_performed"`
	LastPerformed  *string `json:"last_performed"`
	MaxWeightKg    float64 `json:"max_weight_kg"`
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Query string `json:"query"`
}

type ChatResponse struct {
	Answer string `json:"answer"`
}

var (
	digitsRe  = regexp.MustCompile(`^\d+$`)
	decimalRe = regexp.MustCompile(`^\d+\.?\d*$`)
)

// FlexNumber holds the raw text of a JSON number or numeric string.
type FlexNumber struct {
	raw    string
	quoted bool
	set    bool
}

func (n *FlexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = FlexNumber{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = FlexNumber{raw: s, quoted: true, set: true}
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("expected number or numeric string")
	}
	*n = FlexNumber{raw: num.String(), set: true}
	return nil
}

// Int parses a whole number. Strings must be plain digits.
func (n FlexNumber) Int() (int, error) {
	if !n.set {
		return 0, fmt.Errorf("required")
	}
	if n.quoted && !digitsRe.MatchString(n.raw) {
		return 0, fmt.Errorf("%q is not a whole number", n.raw)
	}
	v, err := strconv.Atoi(n.raw)
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole number", n.raw)
	}
	return v, nil
}

// Float parses a decimal. Strings must be unsigned decimals.
func (n FlexNumber) Float() (float64, error) {
	if !n.set {
		return 0, fmt.Errorf("required")
	}
	if n.quoted && !decimalRe.MatchString(n.raw) {
		return 0, fmt.Errorf("%q is not a number", n.raw)
	}
	v, err := strconv.ParseFloat(n.raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", n.raw)
	}
	return v, nil
}
