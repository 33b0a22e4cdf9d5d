package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/liftbuddy/internal/llm"
	"github.com/mohammad-safakhou/liftbuddy/internal/rag"
	"github.com/mohammad-safakhou/liftbuddy/internal/store"
)

const (
	maxSetsPerExercise = 20
	maxSessionsLimit   = 100
	searchLimit        = 20
	dateLayout         = "2006-01-02"
)

// workoutStore is the slice of the store the workout endpoints need.
type workoutStore interface {
	FindExerciseDefinition(ctx context.Context, userID, name string) (store.ExerciseDefinition, bool, error)
	CreateExerciseDefinition(ctx context.Context, userID, name string, muscleGroup *string, vector []float32) (store.ExerciseDefinition, error)
	GetExerciseDefinition(ctx context.Context, userID, id string) (store.ExerciseDefinition, error)
	LogExercise(ctx context.Context, in store.LogExerciseInput) (store.LoggedExercise, error)
	ListSessions(ctx context.Context, f store.SessionFilter) ([]store.SessionSummary, error)
	WeekSessions(ctx context.Context, userID string, from, to time.Time) ([]store.SessionSummary, error)
	GetSessionDetail(ctx context.Context, userID, sessionID string) (store.SessionDetail, error)
	SearchExercises(ctx context.Context, userID, query string, limit int) ([]store.ExerciseSearchResult, error)
}

// WorkoutsHandler serves exercise logging and history.
type WorkoutsHandler struct {
	Store    workoutStore
	Embedder llm.Embedder
	Location *time.Location
	Now      func() time.Time
	logger   *log.Logger
}

func (h *WorkoutsHandler) Register(workouts, search *echo.Group) {
	if h.logger == nil {
		h.logger = log.New(log.Writer(), "[WORKOUTS] ", log.LstdFlags)
	}
	workouts.POST("/exercise-definition", h.createDefinition)
	workouts.POST("/exercise", h.logExercise)
	workouts.GET("/sessions", h.listSessions)
	workouts.GET("/sessions/:session_id", h.getSession)
	workouts.GET("/week", h.week)
	search.GET("/exercises", h.searchExercises)
}

// today is the current calendar day in the configured timezone.
func (h *WorkoutsHandler) today() time.Time {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now().In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// embed returns nil on failure so the row is stored and picked up by the backfill job.
func (h *WorkoutsHandler) embed(ctx context.Context, text string) []float32 {
	if h.Embedder == nil {
		return nil
	}
	vec, err := h.Embedder.Embed(ctx, text)
	if err != nil {
		h.logger.Printf("embedding deferred to backfill: %v", err)
		return nil
	}
	return vec
}

// Create exercise definition
//
//	@Summary	Get or create an exercise definition by name
//	@Tags		workouts
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		ExerciseDefinitionRequest	true	"Definition"
//	@Success	200		{object}	Envelope
//	@Failure	400		{object}	Envelope
//	@Router		/api/v1/workouts/exercise-definition [post]
func (h *WorkoutsHandler) createDefinition(c echo.Context) error {
	var req ExerciseDefinitionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body")
	}
	name := strings.TrimSpace(req.Name)
	if n := utf8.RuneCountInString(name); n < 1 || n > 100 {
		return badRequest("name must be between 1 and 100 characters")
	}
	var muscleGroup *string
	if req.MuscleGroup != nil {
		mg := strings.TrimSpace(*req.MuscleGroup)
		if utf8.RuneCountInString(mg) > 50 {
			return badRequest("muscle_group must be at most 50 characters")
		}
		if mg != "" {
			muscleGroup = &mg
		}
	}

	ctx := c.Request().Context()
	uid := userID(c)
	def, found, err := h.Store.FindExerciseDefinition(ctx, uid, name)
	if err != nil {
		return storeError(err, "Exercise definition not found")
	}
	if !found {
		vec := h.embed(ctx, rag.DefinitionDocument(name, muscleGroup))
		def, err = h.Store.CreateExerciseDefinition(ctx, uid, name, muscleGroup, vec)
		if errors.Is(err, store.ErrConflict) {
			// created concurrently under the same name
			def, found, err = h.Store.FindExerciseDefinition(ctx, uid, name)
			if err == nil && !found {
				err = store.ErrConflict
			}
		}
		if err != nil {
			return storeError(err, "Exercise definition not found")
		}
	}
	return success(c, http.StatusOK, toDefinitionResponse(def))
}

// Log exercise
//
//	@Summary	Append an exercise with its sets to today's session
//	@Tags		workouts
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		LogExerciseRequest	true	"Exercise"
//	@Success	201		{object}	Envelope
//	@Failure	400		{object}	Envelope
//	@Failure	404		{object}	Envelope
//	@Router		/api/v1/workouts/exercise [post]
func (h *WorkoutsHandler) logExercise(c echo.Context) error {
	var req LogExerciseRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body: %v", err)
	}
	if _, err := uuid.Parse(req.ExerciseDefinitionID); err != nil {
		return badRequest("Invalid exercise definition ID format")
	}
	sets, err := validateSets(req.Sets)
	if err != nil {
		return badRequest("%v", err)
	}

	ctx := c.Request().Context()
	uid := userID(c)
	def, err := h.Store.GetExerciseDefinition(ctx, uid, req.ExerciseDefinitionID)
	if err != nil {
		return storeError(err, "Exercise definition not found")
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range sets {
		i := i
		g.Go(func() error {
			sets[i].Vector = h.embed(gctx, rag.SetDocument(def.Name, sets[i].Reps, sets[i].WeightKg))
			return nil
		})
	}
	_ = g.Wait()

	started := time.Now()
	logged, err := h.Store.LogExercise(ctx, store.LogExerciseInput{
		UserID:               uid,
		ExerciseDefinitionID: def.ID,
		WorkoutDate:          h.today(),
		Sets:                 sets,
	})
	if err != nil {
		return storeError(err, "Exercise definition not found")
	}
	h.logger.Printf("logged %s (%d sets) user=%s session=%s in %s", def.Name, len(sets), uid, logged.SessionID, time.Since(started))
	return success(c, http.StatusCreated, IDResponse{ID: logged.ID})
}

func validateSets(in []SetRequest) ([]store.SetInput, error) {
	if len(in) == 0 {
		return nil, errors.New("At least one set is required")
	}
	if len(in) > maxSetsPerExercise {
		return nil, errors.New("Maximum 20 sets allowed per exercise")
	}
	seen := make(map[int]struct{}, len(in))
	out := make([]store.SetInput, 0, len(in))
	for i, s := range in {
		num, err := s.Set.Int()
		if err != nil || num <= 0 {
			return nil, fmt.Errorf("sets[%d].set must be a positive whole number", i)
		}
		reps, err := s.Reps.Int()
		if err != nil || reps <= 0 {
			return nil, fmt.Errorf("sets[%d].reps must be a positive whole number", i)
		}
		weight, err := s.WeightKg.Float()
		if err != nil || weight < 0 {
			return nil, fmt.Errorf("sets[%d].weight_kg must be a non-negative number", i)
		}
		if _, dup := seen[num]; dup {
			return nil, errors.New("Set numbers must be unique")
		}
		seen[num] = struct{}{}
		out = append(out, store.SetInput{SetNumber: num, Reps: reps, WeightKg: weight})
	}
	return out, nil
}

// List sessions
//
//	@Summary	List workout sessions newest first
//	@Tags		workouts
//	@Produce	json
//	@Param		q			query		string	false	"exercise or muscle group filter"
//	@Param		start_date	query		string	false	"YYYY-MM-DD"
//	@Param		end_date	query		string	false	"YYYY-MM-DD"
//	@Param		limit		query		int		false	"page size (max 100)"
//	@Param		offset		query		int		false	"page offset"
//	@Success	200			{object}	Envelope
//	@Router		/api/v1/workouts/sessions [get]
func (h *WorkoutsHandler) listSessions(c echo.Context) error {
	f := store.SessionFilter{UserID: userID(c), Query: strings.TrimSpace(c.QueryParam("q")), Limit: 20}
	var err error
	if v := c.QueryParam("limit"); v != "" {
		f.Limit, err = strconv.Atoi(v)
		if err != nil || f.Limit < 1 || f.Limit > maxSessionsLimit {
			return badRequest("limit must be between 1 and %d", maxSessionsLimit)
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		f.Offset, err = strconv.Atoi(v)
		if err != nil || f.Offset < 0 {
			return badRequest("offset must be a non-negative integer")
		}
	}
	if f.From, err = parseDateParam(c, "start_date"); err != nil {
		return err
	}
	if f.To, err = parseDateParam(c, "end_date"); err != nil {
		return err
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return badRequest("start_date must not be after end_date")
	}

	sessions, err := h.Store.ListSessions(c.Request().Context(), f)
	if err != nil {
		return storeError(err, "Session not found")
	}
	out := toSummaryResponses(sessions)
	return success(c, http.StatusOK, SessionsResponse{
		Sessions:   out,
		Pagination: Pagination{Limit: f.Limit, Offset: f.Offset, Count: len(out)},
	})
}

func parseDateParam(c echo.Context, name string) (time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, badRequest("%s must be YYYY-MM-DD", name)
	}
	return t, nil
}

// Get session
//
//	@Summary	Session detail with exercises and sets
//	@Tags		workouts
//	@Produce	json
//	@Param		session_id	path		string	true	"Session ID"
//	@Success	200			{object}	Envelope
//	@Failure	404			{object}	Envelope
//	@Router		/api/v1/workouts/sessions/{session_id} [get]
func (h *WorkoutsHandler) getSession(c echo.Context) error {
	id := c.Param("session_id")
	if _, err := uuid.Parse(id); err != nil {
		return badRequest("Invalid session ID format")
	}
	d, err := h.Store.GetSessionDetail(c.Request().Context(), userID(c), id)
	if err != nil {
		return storeError(err, "Session not found")
	}
	resp := SessionDetailResponse{
		ID:          d.ID,
		WorkoutDate: d.WorkoutDate.Format(dateLayout),
		CreatedAt:   d.CreatedAt,
		Exercises:   make([]SessionExerciseResponse, 0, len(d.Exercises)),
	}
	for _, ex := range d.Exercises {
		er := SessionExerciseResponse{
			ID:                   ex.ID,
			ExerciseDefinitionID: ex.ExerciseDefinitionID,
			Name:                 ex.Name,
			MuscleGroup:          ex.MuscleGroup,
			Order:                ex.Order,
			Sets:                 make([]SessionSetResponse, 0, len(ex.Sets)),
		}
		for _, s := range ex.Sets {
			er.Sets = append(er.Sets, SessionSetResponse{ID: s.ID, SetNumber: s.SetNumber, Reps: s.Reps, WeightKg: s.WeightKg})
		}
		resp.Exercises = append(resp.Exercises, er)
	}
	return success(c, http.StatusOK, resp)
}

// Current week
//
//	@Summary	Sessions from Monday of the current week through today
//	@Tags		workouts
//	@Produce	json
//	@Success	200	{object}	Envelope
//	@Router		/api/v1/workouts/week [get]
func (h *WorkoutsHandler) week(c echo.Context) error {
	today := h.today()
	monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	sessions, err := h.Store.WeekSessions(c.Request().Context(), userID(c), monday, today)
	if err != nil {
		return storeError(err, "Session not found")
	}
	return success(c, http.StatusOK, toSummaryResponses(sessions))
}

// Search exercises
//
//	@Summary	Search exercise definitions with usage stats
//	@Tags		search
//	@Produce	json
//	@Param		q	query		string	true	"search text"
//	@Success	200	{object}	Envelope
//	@Failure	400	{object}	Envelope
//	@Router		/api/v1/search/exercises [get]
func (h *WorkoutsHandler) searchExercises(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return badRequest("Search query is required")
	}
	results, err := h.Store.SearchExercises(c.Request().Context(), userID(c), q, searchLimit)
	if err != nil {
		return storeError(err, "Exercise not found")
	}
	out := make([]ExerciseSearchResponse, 0, len(results))
	for _, r := range results {
		item := ExerciseSearchResponse{
			ID:             r.ID,
			Name:           r.Name,
			MuscleGroup:    r.MuscleGroup,
			TimesPerformed: r.TimesPerformed,
			MaxWeightKg:    r.MaxWeightKg,
		}
		if r.LastPerformed != nil {
			d := r.LastPerformed.Format(dateLayout)
			item.LastPerformed = &d
		}
		out = append(out, item)
	}
	return success(c, http.StatusOK, out)
}

func toDefinitionResponse(def store.ExerciseDefinition) ExerciseDefinitionResponse {
	return ExerciseDefinitionResponse{
		ID:          def.ID,
		Name:        def.Name,
		MuscleGroup: def.MuscleGroup,
		CreatedAt:   def.CreatedAt,
		UpdatedAt:   def.UpdatedAt,
	}
}

func toSummaryResponses(in []store.SessionSummary) []SessionSummaryResponse {
	out := make([]SessionSummaryResponse, 0, len(in))
	for _, s := range in {
		out = append(out, SessionSummaryResponse{
			ID:            s.ID,
			WorkoutDate:   s.WorkoutDate.Format(dateLayout),
			CreatedAt:     s.CreatedAt,
			ExerciseCount: s.ExerciseCount,
			TotalSets:     s.TotalSets,
			TotalVolumeKg: s.TotalVolumeKg,
			MuscleGroups:  s.MuscleGroups,
		})
	}
	return out
}
