// Package metrics exposes Prometheus instrumentation for the scan pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the scanner.
type Metrics struct {
	CyclesTotal      prometheus.Counter
	CycleDuration    prometheus.Histogram
	SymbolsScanned   prometheus.Counter
	FetchErrors      prometheus.Counter
	HistorySkips     prometheus.Counter
	SignalsTotal     *prometheus.CounterVec // label: direction
	AlertsDispatched prometheus.Counter
	AlertsSuppressed prometheus.Counter
	NotifyErrors     prometheus.Counter
	NoiseVetoes      prometheus.Counter

	registry *prometheus.Registry
}

// New registers and returns all scanner metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_scan_cycles_total",
			Help: "Total completed scan cycles",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_scan_cycle_duration_seconds",
			Help:    "Wall-clock duration of a scan cycle",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		SymbolsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_symbols_scanned_total",
			Help: "Total symbol evaluations across all cycles",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_fetch_errors_total",
			Help: "Total candle fetch failures (symbol skipped, cycle continues)",
		}),
		HistorySkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_history_skips_total",
			Help: "Total evaluations skipped for insufficient candle history",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_signals_total",
			Help: "Total directional signals past the score threshold",
		}, []string{"direction"}),
		AlertsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_alerts_dispatched_total",
			Help: "Total alerts actually delivered",
		}),
		AlertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_alerts_suppressed_total",
			Help: "Total alerts suppressed by the cooldown ledger",
		}),
		NotifyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_notify_errors_total",
			Help: "Total notification delivery failures",
		}),
		NoiseVetoes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_noise_vetoes_total",
			Help: "Total signals vetoed by the noise filter",
		}),
		registry: reg,
	}

	reg.MustRegister(
		m.CyclesTotal, m.CycleDuration, m.SymbolsScanned, m.FetchErrors,
		m.HistorySkips, m.SignalsTotal, m.AlertsDispatched, m.AlertsSuppressed,
		m.NotifyErrors, m.NoiseVetoes,
	)
	return m
}

// ObserveCycle records one completed cycle.
func (m *Metrics) ObserveCycle(d time.Duration) {
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(d.Seconds())
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts a blocking HTTP listener exposing /metrics.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
