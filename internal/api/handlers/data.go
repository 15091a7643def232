package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/profitmonk/high-intent-signals/internal/brain"
	"github.com/profitmonk/high-intent-signals/internal/contracts"
	"github.com/profitmonk/high-intent-signals/internal/s0_data/collector"
	"github.com/profitmonk/high-intent-signals/internal/s0_data/quality"
	"github.com/profitmonk/high-intent-signals/internal/s2_signals"
	"github.com/profitmonk/high-intent-signals/pkg/logger"
)

// Preparer loads datasets (brain.Orchestrator)
type Preparer interface {
	Prepare(ctx context.Context, dataset string) (*brain.Inputs, error)
	Invalidate()
}

// PriceCollector fetches vendor prices (collector.Collector)
type PriceCollector interface {
	FetchPrices(ctx context.Context, tickers []string, from, to time.Time, cfg collector.Config) ([]collector.FetchResult, error)
}

// DataHandler handles data-related API endpoints
// ⭐ SSOT: 데이터 API 핸들러는 이 구조체에서만
type DataHandler struct {
	preparer  Preparer
	collector PriceCollector // optional (FMP_API_KEY 없으면 nil)
	logger    *logger.Logger
}

// NewDataHandler creates a new data handler
func NewDataHandler(preparer Preparer, col PriceCollector, log *logger.Logger) *DataHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &DataHandler{
		preparer:  preparer,
		collector: col,
		logger:    log,
	}
}

// QualityResponse describes a loaded dataset
type QualityResponse struct {
	Dataset string               `json:"dataset"`
	Signals s2_signals.LoadStats `json:"signals"`
	Tickers int                  `json:"tickers"`
	Missing []string             `json:"missing_tickers,omitempty"`
	Quality *quality.Snapshot    `json:"quality"`
}

// GetQuality returns the price coverage of a dataset
// GET /api/data/quality?dataset=1b
func (h *DataHandler) GetQuality(w http.ResponseWriter, r *http.Request) {
	dataset := r.URL.Query().Get("dataset")
	if dataset == "" {
		dataset = "1b"
	}

	in, err := h.preparer.Prepare(r.Context(), dataset)
	if err != nil {
		h.logger.WithError(err).WithField("dataset", dataset).Error("Failed to prepare dataset")
		respondError(w, errorStatus(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, QualityResponse{
		Dataset: in.Dataset,
		Signals: in.Stats,
		Tickers: len(s2_signals.Tickers(in.Signals)),
		Missing: in.Missing,
		Quality: in.Quality,
	})
}

// CollectRequest represents a price collection request
type CollectRequest struct {
	Dataset     string `json:"dataset"`
	From        string `json:"from"` // Optional: YYYY-MM-DD, 기본값 첫 시그널일
	To          string `json:"to"`   // Optional: YYYY-MM-DD, 기본값 오늘
	Workers     int    `json:"workers"`
	Incremental bool   `json:"incremental"`
}

// CollectResult is one ticker's fetch outcome
type CollectResult struct {
	Ticker  string `json:"ticker"`
	Bars    int    `json:"bars"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CollectResponse represents a price collection response
type CollectResponse struct {
	Status  string          `json:"status"`
	Dataset string          `json:"dataset"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	Success int             `json:"success"`
	Skipped int             `json:"skipped"`
	Failed  int             `json:"failed"`
	Results []CollectResult `json:"results"`
}

// Collect fetches prices for every ticker in a dataset
// POST /api/data/collect
func (h *DataHandler) Collect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.collector == nil {
		respondError(w, http.StatusServiceUnavailable, "Price collection requires FMP_API_KEY")
		return
	}

	var req CollectRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Dataset == "" {
		req.Dataset = "1b"
	}
	if req.Workers <= 0 {
		req.Workers = 5
	}

	in, err := h.preparer.Prepare(ctx, req.Dataset)
	if err != nil {
		respondError(w, errorStatus(err), err.Error())
		return
	}

	// Parse date range
	from, _ := quality.Window(in.Signals)
	to := contracts.Day(time.Now())
	if req.From != "" {
		if from, err = contracts.ParseDay(req.From); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'from' date format (expected YYYY-MM-DD)")
			return
		}
	}
	if req.To != "" {
		if to, err = contracts.ParseDay(req.To); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'to' date format (expected YYYY-MM-DD)")
			return
		}
	}
	if to.Before(from) {
		respondError(w, http.StatusBadRequest, "'to' must not be before 'from'")
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"dataset": req.Dataset,
		"from":    from.Format(contracts.DateLayout),
		"to":      to.Format(contracts.DateLayout),
	}).Info("Price collection triggered")

	results, err := h.collector.FetchPrices(ctx, s2_signals.Tickers(in.Signals), from, to, collector.Config{
		Workers:     req.Workers,
		Incremental: req.Incremental,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to collect prices")
		respondError(w, http.StatusInternalServerError, "Failed to collect prices")
		return
	}

	// 새 가격으로 다음 실행이 다시 로드하도록
	h.preparer.Invalidate()

	s := collector.Summarize(results)
	resp := CollectResponse{
		Status:  "success",
		Dataset: req.Dataset,
		From:    from.Format(contracts.DateLayout),
		To:      to.Format(contracts.DateLayout),
		Success: s.Success,
		Skipped: s.Skipped,
		Failed:  s.Failed,
		Results: make([]CollectResult, 0, len(results)),
	}
	for _, res := range results {
		row := CollectResult{Ticker: res.Ticker, Bars: res.PriceCount, Skipped: res.Skipped}
		if res.Error != nil {
			row.Error = res.Error.Error()
		}
		resp.Results = append(resp.Results, row)
	}
	if s.Failed > 0 {
		resp.Status = "partial"
	}
	respondJSON(w, http.StatusOK, resp)
}
