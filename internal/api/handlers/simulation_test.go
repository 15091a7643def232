package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitmonk/high-intent-signals/internal/api/stream"
	"github.com/profitmonk/high-intent-signals/internal/audit"
	"github.com/profitmonk/high-intent-signals/internal/backtest"
	"github.com/profitmonk/high-intent-signals/internal/brain"
	"github.com/profitmonk/high-intent-signals/internal/montecarlo"
	"github.com/profitmonk/high-intent-signals/internal/strategyconfig"
)

type fakeRunner struct {
	mu       sync.Mutex
	last     brain.Request
	btErr    error
	mcErr    error
	block    bool // RunMonteCarlo waits for ctx cancellation
	runs     map[uuid.UUID]*audit.Run
	listErr  error
	listKind audit.Kind
}

func (f *fakeRunner) RunBacktest(ctx context.Context, req brain.Request) (*brain.BacktestOutcome, error) {
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	if f.btErr != nil {
		return nil, f.btErr
	}
	return &brain.BacktestOutcome{
		RunID:  uuid.New(),
		Saved:  req.Save,
		Result: &backtest.Result{},
		Export: &audit.PortfolioExport{Dataset: req.Strategy.Signals.Dataset},
	}, nil
}

func (f *fakeRunner) RunMonteCarlo(ctx context.Context, req brain.Request) (*brain.MonteCarloOutcome, error) {
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.mcErr != nil {
		return nil, f.mcErr
	}
	for i := 1; i <= 3; i++ {
		req.Progress(montecarlo.Progress{Completed: i, Total: 3})
	}
	return &brain.MonteCarloOutcome{
		RunID:   uuid.New(),
		Summary: &montecarlo.Summary{Runs: 3},
	}, nil
}

func (f *fakeRunner) GetRun(ctx context.Context, id uuid.UUID) (*audit.Run, error) {
	if run, ok := f.runs[id]; ok {
		return run, nil
	}
	return nil, audit.ErrRunNotFound
}

func (f *fakeRunner) ListRuns(ctx context.Context, kind audit.Kind, limit int) ([]audit.Run, error) {
	f.listKind = kind
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []audit.Run{}, nil
}

func (f *fakeRunner) lastRequest() brain.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func testPresets() map[string]*strategyconfig.Config {
	cfg := strategyconfig.Default()
	cfg.Meta.StrategyID = "hold_12m"
	cfg.Meta.Name = "Hold 12M"
	return map[string]*strategyconfig.Config{"hold_12m": cfg}
}

func newSimulationRouter(runner Runner) (*mux.Router, *JobStore) {
	jobs := NewJobStore(nil, nil)
	h := NewSimulationHandler(runner, testPresets(), jobs, stream.NewHub(nil, nil), 2, nil)

	r := mux.NewRouter()
	r.HandleFunc("/api/backtest", h.RunBacktest).Methods(http.MethodPost)
	r.HandleFunc("/api/montecarlo", h.RunMonteCarlo).Methods(http.MethodPost)
	r.HandleFunc("/api/runs", h.ListRuns).Methods(http.MethodGet)
	r.HandleFunc("/api/runs/{id}", h.GetRun).Methods(http.MethodGet)
	r.HandleFunc("/api/runs/{id}", h.CancelRun).Methods(http.MethodDelete)
	r.HandleFunc("/api/runs/{id}/status", h.GetStatus).Methods(http.MethodGet)
	return r, jobs
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSimulationHandler_RunBacktest(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		btErr      error
		wantStatus int
	}{
		{"preset", `{"strategy":"hold_12m"}`, nil, http.StatusOK},
		{"defaults", ``, nil, http.StatusOK},
		{"unknown preset", `{"strategy":"nope"}`, nil, http.StatusNotFound},
		{"invalid override", `{"strategy":"hold_12m","overrides":{"max_position_pct":2}}`, nil, http.StatusBadRequest},
		{"unknown field", `{"strategy":"hold_12m","bogus":1}`, nil, http.StatusBadRequest},
		{"quality gate", `{"strategy":"hold_12m"}`, brain.ErrQualityGate, http.StatusUnprocessableEntity},
		{"no audit repo", `{"strategy":"hold_12m","save":true}`, brain.ErrNoAuditRepository, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newSimulationRouter(&fakeRunner{btErr: tt.btErr})
			rec := do(t, router, http.MethodPost, "/api/backtest", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestSimulationHandler_RunBacktestAppliesOverrides(t *testing.T) {
	runner := &fakeRunner{}
	router, _ := newSimulationRouter(runner)

	rec := do(t, router, http.MethodPost, "/api/backtest",
		`{"strategy":"hold_12m","overrides":{"stop_loss":0.3,"holding_period":90},"save":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	req := runner.lastRequest()
	require.NotNil(t, req.Strategy)
	assert.Equal(t, "hold_12m", req.Strategy.Meta.StrategyID)
	assert.Equal(t, 0.3, req.Strategy.Exit.StopLossPct)
	assert.Equal(t, 90, req.Strategy.Exit.HoldingPeriodDays)
	assert.True(t, req.Save)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, true, out["saved"])
	assert.Contains(t, out, "result")
}

func TestSimulationHandler_RunBacktestExportFormat(t *testing.T) {
	router, _ := newSimulationRouter(&fakeRunner{})

	rec := do(t, router, http.MethodPost, "/api/backtest?format=export", `{"strategy":"hold_12m"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "1b", out["dataset"])
}

func TestSimulationHandler_MonteCarloLifecycle(t *testing.T) {
	router, jobs := newSimulationRouter(&fakeRunner{})

	rec := do(t, router, http.MethodPost, "/api/montecarlo", `{"strategy":"hold_12m"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted AcceptedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	id := accepted.Job.ID
	assert.Equal(t, "/api/runs/"+id.String()+"/stream", accepted.StreamURL)

	require.Eventually(t, func() bool {
		j, ok := jobs.Get(context.Background(), id)
		return ok && j.Done()
	}, 2*time.Second, 10*time.Millisecond)

	rec = do(t, router, http.MethodGet, accepted.StatusURL, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var job Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, JobCompleted, job.Status)
	assert.Equal(t, 3, job.Completed)
	assert.Equal(t, 3, job.Total)

	rec = do(t, router, http.MethodGet, accepted.ResultURL, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary montecarlo.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.Runs)
}

func TestSimulationHandler_MonteCarloCancel(t *testing.T) {
	router, jobs := newSimulationRouter(&fakeRunner{block: true})

	rec := do(t, router, http.MethodPost, "/api/montecarlo", `{"strategy":"hold_12m"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var accepted AcceptedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))

	// 실행 중에는 결과 대신 202
	rec = do(t, router, http.MethodGet, accepted.ResultURL, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, router, http.MethodDelete, accepted.ResultURL, "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		j, ok := jobs.Get(context.Background(), accepted.Job.ID)
		return ok && j.FinishedAt != nil
	}, 2*time.Second, 10*time.Millisecond)

	j, _ := jobs.Get(context.Background(), accepted.Job.ID)
	assert.Equal(t, JobCanceled, j.Status)
}

func TestSimulationHandler_MonteCarloRejectsInvalidStrategy(t *testing.T) {
	router, _ := newSimulationRouter(&fakeRunner{})

	rec := do(t, router, http.MethodPost, "/api/montecarlo",
		`{"strategy":"hold_12m","overrides":{"min_gap":5,"max_gap":2}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulationHandler_GetRun(t *testing.T) {
	saved := &audit.Run{ID: uuid.New(), Kind: audit.KindBacktest, Strategy: "hold_12m"}
	router, _ := newSimulationRouter(&fakeRunner{runs: map[uuid.UUID]*audit.Run{saved.ID: saved}})

	rec := do(t, router, http.MethodGet, "/api/runs/"+saved.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var run audit.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, saved.ID, run.ID)

	rec = do(t, router, http.MethodGet, "/api/runs/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/runs/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/runs/"+uuid.NewString()+"/status", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodDelete, "/api/runs/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSimulationHandler_ListRuns(t *testing.T) {
	runner := &fakeRunner{}
	router, _ := newSimulationRouter(runner)

	rec := do(t, router, http.MethodGet, "/api/runs?kind=montecarlo&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, audit.KindMonteCarlo, runner.listKind)

	rec = do(t, router, http.MethodGet, "/api/runs?kind=forecast", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	runner.listErr = brain.ErrNoAuditRepository
	rec = do(t, router, http.MethodGet, "/api/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
