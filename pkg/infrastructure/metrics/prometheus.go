// Package metrics provides Prometheus metrics for generation runs
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record kinds counted by RecordCreated
const (
	KindLineItem = "rfq_line_item"
	KindLink     = "assembly_link"
	KindItem     = "item"
	KindQuote    = "quote"
	KindBOMLine  = "bom_line"
	KindRouter   = "router"
	KindDocument = "document"
)

// Recorder holds the metrics of one process on its own registry so runs
// can be written out as a textfile at exit
type Recorder struct {
	registry *prometheus.Registry

	recordsCreated *prometheus.CounterVec
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	retriesTotal   prometheus.Counter
}

// NewRecorder creates a recorder with a fresh registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		recordsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rfqgen_records_created_total",
				Help: "Total number of ERP records created, by kind",
			},
			[]string{"kind"},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rfqgen_runs_total",
				Help: "Total number of generation runs, by outcome",
			},
			[]string{"mode", "status"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rfqgen_run_duration_seconds",
				Help:    "Duration of generation runs",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 300, 600},
			},
		),
		retriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rfqgen_retries_total",
				Help: "Total number of runs retried after a transient failure",
			},
		),
	}
}

// RecordCreated counts n records of kind
func (r *Recorder) RecordCreated(kind string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.recordsCreated.WithLabelValues(kind).Add(float64(n))
}

// RecordRun counts a finished run and observes its duration
func (r *Recorder) RecordRun(mode, status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(mode, status).Inc()
	r.runDuration.Observe(duration.Seconds())
}

func (r *Recorder) RecordRetry() {
	if r == nil {
		return
	}
	r.retriesTotal.Inc()
}

// Registry exposes the gatherer for export
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes the current metrics in the node exporter textfile format
func (r *Recorder) WriteTextfile(filename string) error {
	return prometheus.WriteToTextfile(filename, r.registry)
}
