// Package observability provides structured logging and Prometheus metrics.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rotation-engine/internal/domain"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "rotation_engine"

// Metrics holds all Prometheus metrics of a backtest process.
type Metrics struct {
	registry *prometheus.Registry

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec

	// Simulation metrics
	TradesClosed   *prometheus.CounterVec
	ExitReasons    *prometheus.CounterVec
	RealizedPnL    *prometheus.GaugeVec
	ToyPricedMarks *prometheus.CounterVec
	RowsSimulated  prometheus.Counter

	// Storage metrics
	StoreDuplicates *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on its own registry,
// so tests and repeated runs never collide on the global one.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of profile runs by status",
		}, []string{"profile", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "run_duration_seconds",
			Help:      "Profile run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"profile"}),

		TradesClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_closed_total",
			Help:      "Total number of closed trades by profile",
		}, []string{"profile"}),
		ExitReasons: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "exits_total",
			Help:      "Total number of exits by profile and reason",
		}, []string{"profile", "reason"}),
		RealizedPnL: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "realized_pnl",
			Help:      "Cumulative realized P&L of the latest run by profile",
		}, []string{"profile"}),
		ToyPricedMarks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "toy_priced_marks_total",
			Help:      "Leg marks priced by the synthetic fallback",
		}, []string{"profile"}),
		RowsSimulated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "rows_total",
			Help:      "Total number of market rows folded",
		}),

		StoreDuplicates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "duplicate_writes_total",
			Help:      "Writes skipped because the run was already persisted",
		}, []string{"table"}),

		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful backtest",
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current metrics in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// RecordRun records one finished profile run.
func (m *Metrics) RecordRun(profile string, res *domain.RunResult, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(profile, status).Inc()
	m.RunDuration.WithLabelValues(profile).Observe(elapsed.Seconds())

	if err != nil || res == nil {
		return
	}

	m.RowsSimulated.Add(float64(len(res.DailyResults)))
	m.TradesClosed.WithLabelValues(profile).Add(float64(len(res.TradeSummary)))
	m.ToyPricedMarks.WithLabelValues(profile).Add(float64(res.ToyPricedMarks))
	for _, t := range res.TradeSummary {
		m.ExitReasons.WithLabelValues(profile, t.ExitReason).Inc()
	}
	if n := len(res.DailyResults); n > 0 {
		m.RealizedPnL.WithLabelValues(profile).Set(res.DailyResults[n-1].RealizedPnL)
	}
}

// RecordDuplicate records a persistence write skipped as already stored.
func (m *Metrics) RecordDuplicate(table string) {
	m.StoreDuplicates.WithLabelValues(table).Inc()
}

// MarkSuccess stamps the last successful run gauge.
func (m *Metrics) MarkSuccess(at time.Time) {
	m.LastSuccessfulRun.Set(float64(at.Unix()))
}
