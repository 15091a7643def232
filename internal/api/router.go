package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/profitmonk/high-intent-signals/internal/api/handlers"
	"github.com/profitmonk/high-intent-signals/pkg/logger"
	"github.com/profitmonk/high-intent-signals/pkg/metrics"
)

// Pinger reports backing store health (database.DB)
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers groups the endpoint handlers mounted by NewRouter
type Handlers struct {
	Simulation *handlers.SimulationHandler
	Catalog    *handlers.CatalogHandler
	Data       *handlers.DataHandler
	Metrics    *metrics.Metrics // nil: /metrics 404
	DB         Pinger           // nil: database 항목 생략
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(h.DB)).Methods("GET")
	r.Handle("/metrics", h.Metrics.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Catalog endpoints
	api.HandleFunc("/datasets", h.Catalog.ListDatasets).Methods("GET")
	api.HandleFunc("/strategies", h.Catalog.ListStrategies).Methods("GET")
	api.HandleFunc("/strategies/{id}", h.Catalog.GetStrategy).Methods("GET")

	// Simulation endpoints
	api.HandleFunc("/backtest", h.Simulation.RunBacktest).Methods("POST")
	api.HandleFunc("/montecarlo", h.Simulation.RunMonteCarlo).Methods("POST")
	api.HandleFunc("/runs", h.Simulation.ListRuns).Methods("GET")
	api.HandleFunc("/runs/{id}", h.Simulation.GetRun).Methods("GET")
	api.HandleFunc("/runs/{id}", h.Simulation.CancelRun).Methods("DELETE")
	api.HandleFunc("/runs/{id}/status", h.Simulation.GetStatus).Methods("GET")
	api.HandleFunc("/runs/{id}/stream", h.Simulation.Stream).Methods("GET")

	// Data endpoints
	api.HandleFunc("/data/quality", h.Data.GetQuality).Methods("GET")
	api.HandleFunc("/data/collect", h.Data.Collect).Methods("POST")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":  "ok",
			"service": "hisig-api",
		}
		status := http.StatusOK

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				body["status"] = "degraded"
				body["database"] = err.Error()
				status = http.StatusServiceUnavailable
			} else {
				body["database"] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}

// loggingMiddleware logs HTTP requests.
// w 를 감싸지 않음 (websocket Hijack 유지)
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
