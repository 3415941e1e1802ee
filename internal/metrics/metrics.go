// Package metrics exposes pipeline counters in the Prometheus text format.
package metrics

import (
	"time"

	"github.com/huangsam/repoharvest/schema"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the counters of one harvest. A nil Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	discovered    prometheus.Counter
	succeeded     prometheus.Counter
	failures      *prometheus.CounterVec
	archiveBytes  prometheus.Counter
	stageDuration *prometheus.HistogramVec
	runDuration   prometheus.Gauge
	interrupted   prometheus.Gauge
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	buckets := []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}
	r := &Recorder{
		registry:     prometheus.NewRegistry(),
		discovered:   prometheus.NewCounter(prometheus.CounterOpts{Name: "repoharvest_repositories_discovered_total", Help: "Repositories returned by discovery"}),
		succeeded:    prometheus.NewCounter(prometheus.CounterOpts{Name: "repoharvest_repositories_succeeded_total", Help: "Repositories analyzed and persisted"}),
		failures:     prometheus.NewCounterVec(prometheus.CounterOpts{Name: "repoharvest_repository_failures_total", Help: "Repositories skipped, by failing stage"}, []string{"stage"}),
		archiveBytes: prometheus.NewCounter(prometheus.CounterOpts{Name: "repoharvest_archive_bytes_total", Help: "Bytes of archives downloaded"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "repoharvest_stage_seconds", Help: "Duration of pipeline stages", Buckets: buckets,
		}, []string{"stage"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{Name: "repoharvest_run_seconds", Help: "Duration of the last run"}),
		interrupted: prometheus.NewGauge(prometheus.GaugeOpts{Name: "repoharvest_run_interrupted", Help: "1 when the last run was interrupted"}),
	}
	r.registry.MustRegister(
		r.discovered, r.succeeded, r.failures, r.archiveBytes,
		r.stageDuration, r.runDuration, r.interrupted,
	)
	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Discovered counts repositories returned by discovery.
func (r *Recorder) Discovered(n int) {
	if r == nil {
		return
	}
	r.discovered.Add(float64(n))
}

// Succeeded counts one persisted repository.
func (r *Recorder) Succeeded() {
	if r == nil {
		return
	}
	r.succeeded.Inc()
}

// Failed counts one skipped repository at stage.
func (r *Recorder) Failed(stage schema.Stage) {
	if r == nil {
		return
	}
	r.failures.WithLabelValues(string(stage)).Inc()
}

// ArchiveBytes counts downloaded archive bytes.
func (r *Recorder) ArchiveBytes(n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.archiveBytes.Add(float64(n))
}

// ObserveStage records how long a stage took.
func (r *Recorder) ObserveStage(stage schema.Stage, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// RunFinished records the run duration and whether it was interrupted.
func (r *Recorder) RunFinished(d time.Duration, interrupted bool) {
	if r == nil {
		return
	}
	r.runDuration.Set(d.Seconds())
	if interrupted {
		r.interrupted.Set(1)
	} else {
		r.interrupted.Set(0)
	}
}

// WriteTextfile writes the metrics for a node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
