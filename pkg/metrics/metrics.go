package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hisig"

// Run status labels
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Metrics holds the process collectors.
// A nil *Metrics is valid and records nothing (METRICS_ENABLED=false).
// ⭐ SSOT: Prometheus 지표 정의는 여기서만
type Metrics struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	drops        *prometheus.CounterVec
	dataGaps     prometheus.Counter
	trades       *prometheus.CounterVec
	fetches      *prometheus.CounterVec
	jobs         *prometheus.CounterVec
	activeStream prometheus.Gauge
}

// New creates collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulation_runs_total",
			Help:      "Simulation runs by kind and status.",
		}, []string{"kind", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "simulation_run_duration_seconds",
			Help:      "Wall time of simulation runs.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_dropped_total",
			Help:      "Signals not admitted, by drop reason.",
		}, []string{"reason"}),
		dataGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_data_gaps_total",
			Help:      "Exit or mark lookups resolved by a fallback price.",
		}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_closed_total",
			Help:      "Closed simulated trades by exit reason.",
		}, []string{"exit_reason"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_fetches_total",
			Help:      "Vendor price fetches per ticker by status.",
		}, []string{"status"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_jobs_total",
			Help:      "Scheduled job executions by job and status.",
		}, []string{"job", "status"}),
		activeStream: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "progress_stream_clients",
			Help:      "Connected websocket progress clients.",
		}),
	}

	reg.MustRegister(
		m.runs, m.runDuration, m.drops, m.dataGaps, m.trades, m.fetches, m.jobs, m.activeStream,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRun records one finished run
func (m *Metrics) ObserveRun(kind, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(kind, status).Inc()
	m.runDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// AddDrops adds drop counts keyed by reason
func (m *Metrics) AddDrops(counts map[string]int) {
	if m == nil {
		return
	}
	for reason, n := range counts {
		m.drops.WithLabelValues(reason).Add(float64(n))
	}
}

// AddDataGaps adds recovered data gaps
func (m *Metrics) AddDataGaps(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dataGaps.Add(float64(n))
}

// AddTrades adds closed trade counts keyed by exit reason
func (m *Metrics) AddTrades(counts map[string]int) {
	if m == nil {
		return
	}
	for reason, n := range counts {
		m.trades.WithLabelValues(reason).Add(float64(n))
	}
}

// ObserveFetch records one ticker fetch
func (m *Metrics) ObserveFetch(status string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(status).Inc()
}

// ObserveJob records one scheduled job execution
func (m *Metrics) ObserveJob(job string, success bool) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if !success {
		status = StatusFailed
	}
	m.jobs.WithLabelValues(job, status).Inc()
}

// StreamConnected adjusts the websocket client gauge by delta
func (m *Metrics) StreamConnected(delta int) {
	if m == nil {
		return
	}
	m.activeStream.Add(float64(delta))
}
