// Package metrics exposes flow outcomes as prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "uiverify"

// Recorder tracks flow runs
type Recorder struct {
	registry    *prometheus.Registry
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	screenshots *prometheus.CounterVec
	now         func() time.Time
}

// NewRecorder creates a recorder backed by its own registry, so tests and
// repeated invocations never collide on the default one.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_runs_total",
			Help:      "Total number of verification flow runs",
		}, []string{"flow", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_duration_seconds",
			Help:      "Verification flow duration",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"flow"}),
		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flow_last_success_timestamp_seconds",
			Help:      "Unix time of the last passing run",
		}, []string{"flow"}),
		screenshots: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "screenshots_total",
			Help:      "Total number of screenshots written",
		}, []string{"flow"}),
		now: time.Now,
	}
}

// ObserveRun records one finished run.
func (r *Recorder) ObserveRun(flow, outcome string, duration time.Duration, screenshots int) {
	r.runs.WithLabelValues(flow, outcome).Inc()
	r.duration.WithLabelValues(flow).Observe(duration.Seconds())
	r.screenshots.WithLabelValues(flow).Add(float64(screenshots))
	if outcome == "passed" {
		r.lastSuccess.WithLabelValues(flow).Set(float64(r.now().Unix()))
	}
}

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// WriteTextfile writes the registry for the node exporter textfile collector.
// A blank path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
