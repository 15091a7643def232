package handlers

import (
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/profitmonk/high-intent-signals/internal/s2_signals"
	"github.com/profitmonk/high-intent-signals/internal/strategyconfig"
)

// CatalogHandler lists datasets and strategy presets
type CatalogHandler struct {
	presets map[string]*strategyconfig.Config
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(presets map[string]*strategyconfig.Config) *CatalogHandler {
	return &CatalogHandler{presets: presets}
}

// DatasetInfo names a signal feed
type DatasetInfo struct {
	Name string `json:"name"`
	File string `json:"file"`
}

// StrategySummary is the list view of a preset
type StrategySummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Dataset     string `json:"dataset"`
	Hash        string `json:"hash"`
}

// StrategyDetail is a full preset with advisory warnings
type StrategyDetail struct {
	Hash     string                   `json:"hash"`
	Config   *strategyconfig.Config   `json:"config"`
	Warnings []strategyconfig.Warning `json:"warnings,omitempty"`
}

// ListDatasets returns the known signal feeds
// GET /api/datasets
func (h *CatalogHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	names := s2_signals.DatasetNames()
	out := make([]DatasetInfo, 0, len(names))
	for _, n := range names {
		out = append(out, DatasetInfo{Name: n, File: s2_signals.Datasets[n]})
	}
	respondJSON(w, http.StatusOK, out)
}

// ListStrategies returns every preset sorted by id
// GET /api/strategies
func (h *CatalogHandler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	out := make([]StrategySummary, 0, len(h.presets))
	for id, cfg := range h.presets {
		hash, _ := strategyconfig.Hash(cfg)
		out = append(out, StrategySummary{
			ID:          id,
			Name:        cfg.Meta.Name,
			Description: cfg.Meta.Description,
			Dataset:     cfg.Signals.Dataset,
			Hash:        hash,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	respondJSON(w, http.StatusOK, out)
}

// GetStrategy returns one preset
// GET /api/strategies/{id}
func (h *CatalogHandler) GetStrategy(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.presets[mux.Vars(r)["id"]]
	if !ok {
		respondError(w, http.StatusNotFound, "Strategy not found")
		return
	}
	hash, err := strategyconfig.Hash(cfg)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to hash strategy")
		return
	}
	respondJSON(w, http.StatusOK, StrategyDetail{
		Hash:     hash,
		Config:   cfg,
		Warnings: strategyconfig.Warn(cfg),
	})
}
