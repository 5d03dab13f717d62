package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_to_mastodon"

// Metrics holds the Prometheus collectors for the posting pipeline.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec // labels: trigger={scheduled,manual}, outcome={done,failed,skipped}
	StageFailures   *prometheus.CounterVec // labels: stage={fetch,parse,format,publish}
	RunDuration     prometheus.Histogram
	LastSuccess     prometheus.Gauge
	PipelineRunning prometheus.Gauge

	// Log writes diverted to the fallback store, labeled by log name.
	LogFallbackWrites *prometheus.CounterVec
}

func newCollectors() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Pipeline runs that failed, by failing stage.",
		}, []string{"stage"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-parse-format-publish run.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that published a status.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in flight, 0 otherwise.",
		}),
		LogFallbackWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_fallback_writes_total",
			Help:      "Log entries written to the fallback store after a primary store failure.",
		}, []string{"log"}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newCollectors()
	prometheus.MustRegister(
		m.RunsTotal,
		m.StageFailures,
		m.RunDuration,
		m.LastSuccess,
		m.PipelineRunning,
		m.LogFallbackWrites,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they need.
func NewMetricsForTesting() *Metrics {
	return newCollectors()
}
