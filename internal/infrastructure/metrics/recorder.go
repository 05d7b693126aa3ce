// Package metrics keeps per-run counters for the ingest job and writes them
// in the Prometheus text format for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"EconomicPulse/internal/ports"
)

const namespace = "economic_pulse"

// Recorder owns a private registry so repeated runs in one process never
// collide with the default registerer.
type Recorder struct {
	registry *prometheus.Registry

	fetchAttempts *prometheus.CounterVec
	rowsKept      prometheus.Counter
	rowsDropped   prometheus.Counter
	rowsUpserted  prometheus.Counter
	runDuration   prometheus.Gauge
	runSuccess    prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

var _ ports.RunRecorder = (*Recorder)(nil)

// NewRecorder registers the run metrics on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		fetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Upstream fetch attempts by outcome.",
		}, []string{"outcome"}),
		rowsKept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_parsed_total",
			Help:      "Rows turned into observations.",
		}),
		rowsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows dropped for a missing series, date or value.",
		}),
		rowsUpserted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_upserted_total",
			Help:      "Observations handed to the warehouse.",
		}),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		runSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_success",
			Help:      "1 if the last run succeeded, 0 otherwise.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}
}

// FetchAttempt counts one upstream attempt under its outcome label.
func (r *Recorder) FetchAttempt(outcome string) {
	r.fetchAttempts.WithLabelValues(outcome).Inc()
}

// Parsed adds the kept and dropped row counts of one table.
func (r *Recorder) Parsed(kept, dropped int) {
	r.rowsKept.Add(float64(kept))
	r.rowsDropped.Add(float64(dropped))
}

// Upserted adds the number of observations handed to the warehouse.
func (r *Recorder) Upserted(n int) {
	r.rowsUpserted.Add(float64(n))
}

// Finished records the run outcome. The last success timestamp is only
// exported after a successful run, so a failed run never reports it as zero.
func (r *Recorder) Finished(duration time.Duration, success bool, at time.Time) {
	r.runDuration.Set(duration.Seconds())
	if !success {
		r.runSuccess.Set(0)
		return
	}

	r.runSuccess.Set(1)
	r.lastSuccess.Set(float64(at.Unix()))
	// Later successes report AlreadyRegisteredError for the same gauge.
	_ = r.registry.Register(r.lastSuccess)
}

// Gatherer exposes the private registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile atomically replaces path with the current metric values.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
