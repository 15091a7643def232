package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/profitmonk/high-intent-signals/internal/api/stream"
	"github.com/profitmonk/high-intent-signals/internal/audit"
	"github.com/profitmonk/high-intent-signals/internal/backtest"
	"github.com/profitmonk/high-intent-signals/internal/brain"
	"github.com/profitmonk/high-intent-signals/internal/montecarlo"
	"github.com/profitmonk/high-intent-signals/internal/s2_signals"
	"github.com/profitmonk/high-intent-signals/internal/strategyconfig"
	"github.com/profitmonk/high-intent-signals/pkg/logger"
)

// Runner executes and looks up simulation runs (brain.Orchestrator)
type Runner interface {
	RunBacktest(ctx context.Context, req brain.Request) (*brain.BacktestOutcome, error)
	RunMonteCarlo(ctx context.Context, req brain.Request) (*brain.MonteCarloOutcome, error)
	GetRun(ctx context.Context, id uuid.UUID) (*audit.Run, error)
	ListRuns(ctx context.Context, kind audit.Kind, limit int) ([]audit.Run, error)
}

// SimulationHandler handles backtest and Monte Carlo endpoints
// ⭐ SSOT: 시뮬레이션 API 핸들러는 이 구조체에서만
type SimulationHandler struct {
	runner  Runner
	presets map[string]*strategyconfig.Config
	jobs    *JobStore
	hub     *stream.Hub
	workers int
	logger  *logger.Logger
}

// NewSimulationHandler creates a new simulation handler
func NewSimulationHandler(
	runner Runner,
	presets map[string]*strategyconfig.Config,
	jobs *JobStore,
	hub *stream.Hub,
	workers int,
	log *logger.Logger,
) *SimulationHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &SimulationHandler{
		runner:  runner,
		presets: presets,
		jobs:    jobs,
		hub:     hub,
		workers: workers,
		logger:  log,
	}
}

// RunRequest selects a preset and optional overrides
type RunRequest struct {
	Strategy  string                   `json:"strategy"` // preset id, 비어 있으면 기본값
	Overrides strategyconfig.Overrides `json:"overrides"`
	Save      bool                     `json:"save"`
}

// AcceptedResponse is returned for asynchronous runs
type AcceptedResponse struct {
	Job       Job    `json:"job"`
	StatusURL string `json:"status_url"`
	StreamURL string `json:"stream_url"`
	ResultURL string `json:"result_url"`
}

// RunBacktest runs one backtest synchronously
// POST /api/backtest
func (h *SimulationHandler) RunBacktest(w http.ResponseWriter, r *http.Request) {
	cfg, save, status, err := h.resolve(r)
	if err != nil {
		respondError(w, status, err.Error())
		return
	}

	out, err := h.runner.RunBacktest(r.Context(), brain.Request{Strategy: cfg, Save: save})
	if err != nil {
		h.logger.WithError(err).WithField("strategy", cfg.Meta.StrategyID).Error("Backtest failed")
		respondError(w, errorStatus(err), err.Error())
		return
	}

	if r.URL.Query().Get("format") == "export" {
		respondJSON(w, http.StatusOK, out.Export)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// RunMonteCarlo starts a Monte Carlo sweep in the background
// POST /api/montecarlo
func (h *SimulationHandler) RunMonteCarlo(w http.ResponseWriter, r *http.Request) {
	cfg, save, status, err := h.resolve(r)
	if err != nil {
		respondError(w, status, err.Error())
		return
	}
	if _, err := cfg.ToMonteCarloConfig(h.workers); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := h.jobs.Start(string(audit.KindMonteCarlo), cfg.Meta.StrategyID, cancel)
	channel := job.ID.String()

	go func() {
		defer cancel()

		out, err := h.runner.RunMonteCarlo(ctx, brain.Request{
			Strategy: cfg,
			Save:     save,
			Workers:  h.workers,
			Progress: func(p montecarlo.Progress) {
				if j, ok := h.jobs.Progress(job.ID, p.Completed, p.Total); ok {
					h.hub.Publish(channel, stream.TypeProgress, j)
				}
			},
		})

		var summary *montecarlo.Summary
		saved := false
		if out != nil {
			summary, saved = out.Summary, out.Saved
		}
		final, _ := h.jobs.Finish(job.ID, summary, saved, err)
		if err != nil {
			h.logger.WithError(err).WithField("run_id", channel).Error("Monte Carlo run failed")
		}
		h.hub.Publish(channel, stream.TypeDone, final)
		h.hub.CloseChannel(channel)
	}()

	respondJSON(w, http.StatusAccepted, AcceptedResponse{
		Job:       job,
		StatusURL: "/api/runs/" + channel + "/status",
		StreamURL: "/api/runs/" + channel + "/stream",
		ResultURL: "/api/runs/" + channel,
	})
}

// GetStatus returns the state of an asynchronous run
// GET /api/runs/{id}/status
func (h *SimulationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	job, found := h.jobs.Get(r.Context(), id)
	if !found {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// GetRun returns a finished run: in-memory summary first, then the audit table
// GET /api/runs/{id}
func (h *SimulationHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	if summary, found := h.jobs.Summary(id); found {
		respondJSON(w, http.StatusOK, summary)
		return
	}
	if job, found := h.jobs.Get(r.Context(), id); found && !job.Done() {
		respondJSON(w, http.StatusAccepted, job)
		return
	}

	run, err := h.runner.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, audit.ErrRunNotFound) || errors.Is(err, brain.ErrNoAuditRepository) {
			respondError(w, http.StatusNotFound, "Run not found")
			return
		}
		h.logger.WithError(err).Error("Failed to get run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// ListRuns lists persisted runs
// GET /api/runs?kind=backtest&limit=20
func (h *SimulationHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	kind := audit.Kind(r.URL.Query().Get("kind"))
	switch kind {
	case "", audit.KindBacktest, audit.KindMonteCarlo:
	default:
		respondError(w, http.StatusBadRequest, "Invalid kind (valid: backtest, montecarlo)")
		return
	}

	runs, err := h.runner.ListRuns(r.Context(), kind, queryInt(r, "limit", 20))
	if err != nil {
		if errors.Is(err, brain.ErrNoAuditRepository) {
			respondError(w, http.StatusServiceUnavailable, "Run history requires DATABASE_URL")
			return
		}
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	respondJSON(w, http.StatusOK, runs)
}

// CancelRun cancels a running asynchronous run
// DELETE /api/runs/{id}
func (h *SimulationHandler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	job, found := h.jobs.Cancel(id)
	if !found {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// Stream upgrades to a websocket that receives progress messages
// GET /api/runs/{id}/stream
func (h *SimulationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	job, found := h.jobs.Get(r.Context(), id)
	if !found {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err := h.hub.Serve(w, r, id.String(), job); err != nil {
		// Upgrade 가 이미 응답을 썼음
		h.logger.WithError(err).Debug("Stream upgrade failed")
		return
	}
	if job.Done() {
		h.hub.CloseChannel(id.String())
	}
}

// resolve builds the strategy for a request: preset (or defaults) plus overrides
func (h *SimulationHandler) resolve(r *http.Request) (*strategyconfig.Config, bool, int, error) {
	var req RunRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, false, http.StatusBadRequest, errors.New("invalid request body")
	}

	var base *strategyconfig.Config
	if req.Strategy == "" {
		base = strategyconfig.Default()
		base.Meta.StrategyID = "custom"
		base.Meta.Name = "Custom"
	} else {
		preset, ok := h.presets[req.Strategy]
		if !ok {
			return nil, false, http.StatusNotFound, errors.New("unknown strategy " + req.Strategy)
		}
		base = preset
	}

	cfg := req.Overrides.Apply(base)
	if err := strategyconfig.Validate(cfg); err != nil {
		return nil, false, http.StatusBadRequest, err
	}
	save := req.Save || r.URL.Query().Get("save") == "true"
	return cfg, save, http.StatusOK, nil
}

func runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid run id")
		return uuid.Nil, false
	}
	return id, true
}

// errorStatus maps run errors to HTTP status codes
func errorStatus(err error) int {
	var ve strategyconfig.ValidationError
	var ce *backtest.ConfigError
	switch {
	case errors.As(err, &ve), errors.As(err, &ce), errors.Is(err, s2_signals.ErrUnknownDataset):
		return http.StatusBadRequest
	case errors.Is(err, brain.ErrQualityGate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, brain.ErrNoAuditRepository):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}
