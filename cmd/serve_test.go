package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/signal-cli/internal/config"
	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/monitoring"
	"github.com/sells-group/signal-cli/internal/pipeline"
	"github.com/sells-group/signal-cli/internal/retrieval"
	"github.com/sells-group/signal-cli/internal/signal"
	"github.com/sells-group/signal-cli/internal/store"
)

type mockRuns struct {
	mock.Mock
}

func (m *mockRuns) Run(ctx context.Context, req model.RunRequest) (*model.RunResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*model.RunResult)
	return res, args.Error(1)
}

func (m *mockRuns) Start(ctx context.Context, req model.RunRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockRuns) Cancel(runID string) bool {
	return m.Called(runID).Bool(0)
}

type testServer struct {
	handler http.Handler
	store   *store.SQLiteStore
	engine  *signal.Engine
	runs    *mockRuns
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := newSQLiteStore(t)
	require.NoError(t, st.UpsertOrganization(context.Background(), &model.Organization{ID: "acme", Name: "Acme Logistics"}))

	engine := signal.NewEngine(st, config.SignalsConfig{})
	runs := &mockRuns{}
	a := &api{
		store:    st,
		runs:     runs,
		signals:  engine,
		scorer:   retrieval.NewScorer(config.RetrievalConfig{}),
		metrics:  monitoring.NewCollector(st, &monitoring.Counters{}),
		lookback: 24,
		limit:    20,
	}
	return &testServer{handler: a.routes([]string{"*"}), store: st, engine: engine, runs: runs}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "ok", decode[map[string]string](t, rr)["status"])
}

func TestCreateRun_Sync(t *testing.T) {
	s := newTestServer(t)
	s.runs.On("Run", mock.Anything, mock.MatchedBy(func(r model.RunRequest) bool {
		return r.OrganizationID == "acme" && r.RecencyWindow.Hours() == 24 && len(r.Targets) == 1
	})).Return(&model.RunResult{Success: true, RunID: "run-1", SignalsCreated: 1}, nil)

	rr := s.do(t, http.MethodPost, "/v1/pipeline/runs", map[string]any{
		"organization_id": "acme",
		"recency_window":  "24h",
		"targets":         []string{"Initech"},
	})

	require.Equal(t, http.StatusOK, rr.Code)
	res := decode[model.RunResult](t, rr)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.SignalsCreated)
	s.runs.AssertExpectations(t)
}

func TestCreateRun_Async(t *testing.T) {
	s := newTestServer(t)
	s.runs.On("Start", mock.Anything, mock.Anything).Return("run-7", nil)

	rr := s.do(t, http.MethodPost, "/v1/pipeline/runs?async=true", map[string]any{"organization_id": "acme"})

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "run-7", decode[map[string]string](t, rr)["run_id"])
}

func TestCreateRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   any
		err    error
		status int
	}{
		{"invalid json", "/v1/pipeline/runs", "not an object", nil, http.StatusBadRequest},
		{"bad window", "/v1/pipeline/runs", map[string]any{"organization_id": "acme", "recency_window": "two days"}, nil, http.StatusBadRequest},
		{"invalid input", "/v1/pipeline/runs", map[string]any{}, eris.Wrap(pipeline.ErrInvalidInput, "organization id is required"), http.StatusBadRequest},
		{"unknown organization", "/v1/pipeline/runs", map[string]any{"organization_id": "nope"}, eris.Wrap(pipeline.ErrOrganizationNotFound, "organization nope"), http.StatusNotFound},
		{"async unknown organization", "/v1/pipeline/runs?async=1", map[string]any{"organization_id": "nope"}, eris.Wrap(pipeline.ErrOrganizationNotFound, "organization nope"), http.StatusNotFound},
		{"unexpected", "/v1/pipeline/runs", map[string]any{"organization_id": "acme"}, eris.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.runs.On("Run", mock.Anything, mock.Anything).Return(nil, tt.err).Maybe()
			s.runs.On("Start", mock.Anything, mock.Anything).Return("", tt.err).Maybe()

			rr := s.do(t, http.MethodPost, tt.path, tt.body)

			assert.Equal(t, tt.status, rr.Code)
			assert.NotEmpty(t, decode[map[string]string](t, rr)["error"])
		})
	}
}

func TestCreateRun_CancelledReturnsPartialResult(t *testing.T) {
	s := newTestServer(t)
	s.runs.On("Run", mock.Anything, mock.Anything).
		Return(&model.RunResult{RunID: "run-2", Success: false, Errors: []string{"context canceled"}}, context.Canceled)

	rr := s.do(t, http.MethodPost, "/v1/pipeline/runs", map[string]any{"organization_id": "acme"})

	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decode[model.RunResult](t, rr).Success)
}

func TestGetAndCancelRun(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.store.CreateRun(ctx, &model.Run{ID: "run-3", OrganizationID: "acme"}))
	s.runs.On("Cancel", "run-3").Return(true)
	s.runs.On("Cancel", "gone").Return(false)

	rr := s.do(t, http.MethodGet, "/v1/pipeline/runs/run-3", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, model.RunStatusQueued, decode[model.Run](t, rr).Status)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/v1/pipeline/runs/missing", nil).Code)
	assert.Equal(t, http.StatusAccepted, s.do(t, http.MethodDelete, "/v1/pipeline/runs/run-3", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/v1/pipeline/runs/gone", nil).Code)
}

func seedSignal(t *testing.T, s *testServer, title string, significance int) string {
	t.Helper()
	res, err := s.engine.Upsert(context.Background(), "acme", "t-1", model.Signal{
		SignalType:        model.SignalTypePattern,
		Subtype:           model.PatternShift,
		Title:             title,
		Description:       "regional freight pricing pressure",
		ConfidenceScore:   70,
		SignificanceScore: significance,
		Urgency:           model.UrgencyNearTerm,
		ImpactLevel:       model.ImpactMedium,
		Evidence:          []string{"Initech cuts rates 12%"},
	})
	require.NoError(t, err)
	return res.Signal.ID
}

func TestSignalsEndpoints(t *testing.T) {
	s := newTestServer(t)
	id := seedSignal(t, s, "Initech starts a price war", 90)
	seedSignal(t, s, "Globex opens a cold-chain hub in Rotterdam", 40)

	rr := s.do(t, http.MethodGet, "/v1/organizations/acme/signals?status=active", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[map[string][]model.Signal](t, rr)["signals"], 2)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/v1/organizations/acme/signals?status=open", nil).Code)

	path := "/v1/organizations/acme/signals/" + id + "/status"
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, path, map[string]string{"status": "resolved"}).Code)
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, path, map[string]string{"status": "dismissed"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, path, map[string]string{"status": "archived"}).Code)
	assert.Equal(t, http.StatusNotFound,
		s.do(t, http.MethodPost, "/v1/organizations/acme/signals/missing/status", map[string]string{"status": "dismissed"}).Code)

	rr = s.do(t, http.MethodGet, "/v1/organizations/acme/signals?status=active", nil)
	assert.Len(t, decode[map[string][]model.Signal](t, rr)["signals"], 1)
}

func TestRetrieveEndpoint(t *testing.T) {
	s := newTestServer(t)
	seedSignal(t, s, "Initech starts a price war", 90)
	seedSignal(t, s, "Globex opens a cold-chain hub in Rotterdam", 40)

	rr := s.do(t, http.MethodPost, "/v1/organizations/acme/retrieve", map[string]any{"query": "price war", "limit": 1})

	require.Equal(t, http.StatusOK, rr.Code)
	results := decode[map[string][]retrieval.Scored](t, rr)["results"]
	require.Len(t, results, 1)
	assert.Equal(t, "Initech starts a price war", results[0].Item.Title)
	assert.Contains(t, results[0].Reason, "strong match for the query")
	assert.LessOrEqual(t, results[0].Composite, 1.0)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.store.CreateRun(ctx, &model.Run{ID: "run-4", OrganizationID: "acme"}))
	require.NoError(t, s.store.UpdateRunResult(ctx, "run-4", model.RunStatusComplete,
		&model.RunResult{Success: true, DurationMs: 2000, EstimatedCostUSD: 0.05}))

	rr := s.do(t, http.MethodGet, "/v1/metrics", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	snap := decode[monitoring.MetricsSnapshot](t, rr)
	assert.Equal(t, 1, snap.RunsTotal)
	assert.Equal(t, 1, snap.RunsComplete)
	assert.Equal(t, 24, snap.LookbackHours)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/v1/pipeline/runs", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()

	s.handler.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
