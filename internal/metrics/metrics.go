// Package metrics exposes Prometheus instrumentation for the attendance
// daemon. Each Metrics owns its registry so tests can build many.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the daemon reports.
type Metrics struct {
	registry *prometheus.Registry

	FramesProcessed prometheus.Counter
	DecodeFailures  prometheus.Counter
	Scans           *prometheus.CounterVec
	CameraActive    prometheus.Gauge
	CameraSessions  prometheus.Counter
	ReportRuns      *prometheus.CounterVec
	ReportDuration  prometheus.Histogram
	ReportCells     prometheus.Counter
	Rollovers       prometheus.Counter
	Backups         *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FramesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "sam_frames_processed_total",
			Help: "Camera frames passed through the symbol decoder",
		}),
		DecodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sam_decode_failures_total",
			Help: "Frames whose decode returned an error",
		}),
		Scans: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sam_scans_total",
			Help: "Scan attempts by outcome",
		}, []string{"outcome"}),
		CameraActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sam_camera_active",
			Help: "1 while the capture loop is running",
		}),
		CameraSessions: factory.NewCounter(prometheus.CounterOpts{
			Name: "sam_camera_sessions_total",
			Help: "Capture sessions started",
		}),
		ReportRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sam_report_runs_total",
			Help: "Report operations by kind and result",
		}, []string{"op", "result"}),
		ReportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sam_report_duration_seconds",
			Help:    "Duration of report operations",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ReportCells: factory.NewCounter(prometheus.CounterOpts{
			Name: "sam_report_cells_changed_total",
			Help: "Report cells rewritten or flagged",
		}),
		Rollovers: factory.NewCounter(prometheus.CounterOpts{
			Name: "sam_day_rollovers_total",
			Help: "Calendar day changes observed",
		}),
		Backups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sam_database_backups_total",
			Help: "Database snapshots by result",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveFrame implements capture.Observer.
func (m *Metrics) ObserveFrame(decodeFailed bool) {
	m.FramesProcessed.Inc()
	if decodeFailed {
		m.DecodeFailures.Inc()
	}
}

// ObserveScan implements capture.Observer.
func (m *Metrics) ObserveScan(outcome string) {
	m.Scans.WithLabelValues(outcome).Inc()
}

// ObserveSession implements capture.Observer.
func (m *Metrics) ObserveSession(active bool) {
	if active {
		m.CameraActive.Set(1)
		m.CameraSessions.Inc()
		return
	}
	m.CameraActive.Set(0)
}

// ObserveReport implements report.Observer.
func (m *Metrics) ObserveReport(op string, changed int, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ReportRuns.WithLabelValues(op, result).Inc()
	m.ReportDuration.Observe(elapsed.Seconds())
	if changed > 0 {
		m.ReportCells.Add(float64(changed))
	}
}

// IncrementRollover records a day change.
func (m *Metrics) IncrementRollover() { m.Rollovers.Inc() }

// ObserveBackup records a database snapshot attempt.
func (m *Metrics) ObserveBackup(err error) {
	if err != nil {
		m.Backups.WithLabelValues("error").Inc()
		return
	}
	m.Backups.WithLabelValues("ok").Inc()
}

// WatchUIEvents exports the notifier's drop and failure counters.
func (m *Metrics) WatchUIEvents(dropped, failed func() uint64) {
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "sam_ui_events_dropped_total",
			Help: "UI events skipped because the window is gone",
		}, func() float64 { return float64(dropped()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "sam_ui_events_failed_total",
			Help: "UI events whose delivery failed",
		}, func() float64 { return float64(failed()) }),
	)
}
