package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/liftbuddy/config"
	"github.com/mohammad-safakhou/liftbuddy/internal/rag"
	"github.com/mohammad-safakhou/liftbuddy/internal/runtime"
	"github.com/mohammad-safakhou/liftbuddy/internal/store"
)

type userStoreStub struct {
	createdEmail string
	createdHash  string
	createErr    error
	id           string
	hash         string
	getErr       error
}

func (s *userStoreStub) CreateUser(_ context.Context, email, hash string) (string, error) {
	s.createdEmail, s.createdHash = email, hash
	if s.createErr != nil {
		return "", s.createErr
	}
	return "user-1", nil
}

func (s *userStoreStub) GetUserByEmail(_ context.Context, email string) (string, string, error) {
	if s.getErr != nil {
		return "", "", s.getErr
	}
	return s.id, s.hash, nil
}

type workoutStoreStub struct {
	found        *store.ExerciseDefinition
	findErr      error
	findCalls    int
	created      store.ExerciseDefinition
	createErr    error
	createCalls  int
	createdName  string
	createdMG    *string
	createdVec   []float32
	def          store.ExerciseDefinition
	getDefErr    error
	logged       store.LogExerciseInput
	logCalls     int
	logErr       error
	filter       store.SessionFilter
	sessions     []store.SessionSummary
	listErr      error
	weekFrom     time.Time
	weekTo       time.Time
	detail       store.SessionDetail
	detailErr    error
	searchQuery  string
	searchLimit  int
	searchResult []store.ExerciseSearchResult
}

func (s *workoutStoreStub) FindExerciseDefinition(_ context.Context, userID, name string) (store.ExerciseDefinition, bool, error) {
	s.findCalls++
	if s.findErr != nil {
		return store.ExerciseDefinition{}, false, s.findErr
	}
	if s.found == nil {
		return store.ExerciseDefinition{}, false, nil
	}
	return *s.found, true, nil
}

func (s *workoutStoreStub) CreateExerciseDefinition(_ context.Context, userID, name string, muscleGroup *string, vector []float32) (store.ExerciseDefinition, error) {
	s.createCalls++
	s.createdName, s.createdMG, s.createdVec = name, muscleGroup, vector
	if s.createErr != nil {
		return store.ExerciseDefinition{}, s.createErr
	}
	return s.created, nil
}

func (s *workoutStoreStub) GetExerciseDefinition(_ context.Context, userID, id string) (store.ExerciseDefinition, error) {
	return s.def, s.getDefErr
}

func (s *workoutStoreStub) LogExercise(_ context.Context, in store.LogExerciseInput) (store.LoggedExercise, error) {
	s.logCalls++
	s.logged = in
	if s.logErr != nil {
		return store.LoggedExercise{}, s.logErr
	}
	return store.LoggedExercise{ID: "se-1", SessionID: "sess-1", ExerciseOrder: 1}, nil
}

func (s *workoutStoreStub) ListSessions(_ context.Context, f store.SessionFilter) ([]store.SessionSummary, error) {
	s.filter = f
	return s.sessions, s.listErr
}

func (s *workoutStoreStub) WeekSessions(_ context.Context, userID string, from, to time.Time) ([]store.SessionSummary, error) {
	s.weekFrom, s.weekTo = from, to
	return s.sessions, s.listErr
}

func (s *workoutStoreStub) GetSessionDetail(_ context.Context, userID, sessionID string) (store.SessionDetail, error) {
	return s.detail, s.detailErr
}

func (s *workoutStoreStub) SearchExercises(_ context.Context, userID, query string, limit int) ([]store.ExerciseSearchResult, error) {
	s.searchQuery, s.searchLimit = query, limit
	return s.searchResult, nil
}

type embedderStub struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (e *embedderStub) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.texts = append(e.texts, text)
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text))}, nil
}

func (e *embedderStub) saw(text string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.texts {
		if t == text {
			return true
		}
	}
	return false
}

type pipelineStub struct {
	user  string
	query string
	res   rag.Result
	err   error
}

func (p *pipelineStub) HandleQuery(_ context.Context, userID, query string) (rag.Result, error) {
	p.user, p.query = userID, query
	return p.res, p.err
}

var errBoom = errors.New("boom")

var testSecret = []byte("test-secret")

type testServer struct {
	e        *echo.Echo
	users    *userStoreStub
	workouts *workoutStoreStub
	embedder *embedderStub
	pipeline *pipelineStub
	token    string
}

func testConfig() *config.Config {
	return &config.Config{Server: config.ServerConfig{CORSOrigins: []string{"*"}}}
}

// 2025-11-05 is a Wednesday.
var fixedNow = time.Date(2025, 11, 5, 23, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		users:    &userStoreStub{},
		workouts: &workoutStoreStub{},
		embedder: &embedderStub{},
		pipeline: &pipelineStub{},
	}
	ts.e = New(testConfig(), Handlers{
		Auth: &AuthHandler{Store: ts.users, Secret: testSecret, TokenTTL: time.Hour},
		Workouts: &WorkoutsHandler{
			Store:    ts.workouts,
			Embedder: ts.embedder,
			Location: time.UTC,
			Now:      func() time.Time { return fixedNow },
		},
		Chat:   &ChatHandler{Pipeline: ts.pipeline},
		Secret: testSecret,
	})
	tok, err := runtime.SignJWT("user-1", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	ts.token = tok
	return ts
}

// do sends an authenticated request through the full router.
func (ts *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if ts.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+ts.token)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data any) Envelope {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Error   *string         `json:"error"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode envelope %q: %v", rec.Body.String(), err)
	}
	if data != nil && len(raw.Data) > 0 && string(raw.Data) != "null" {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return Envelope{Success: raw.Success, Error: raw.Error}
}
