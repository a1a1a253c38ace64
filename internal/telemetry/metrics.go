package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsClient is the set of counters the pipeline and the API report to.
type MetricsClient interface {
	IncrementServerRequestCounter(status string)
	IncrementJobCounter(status string)
	IncrementTierCounter(tier, outcome string)
	ObserveTierDuration(tier string, d time.Duration)
	AddActiveJobs(delta float64)
}

// DefaultMetricsClient holds all the Prometheus metrics for the application
type DefaultMetricsClient struct {
	ServerRequestCounter *prometheus.CounterVec
	JobCounter           *prometheus.CounterVec
	TierCounter          *prometheus.CounterVec
	TierDuration         *prometheus.HistogramVec
	ActiveJobs           prometheus.Gauge

	registry *prometheus.Registry
}

// NewDefaultMetricsClient initializes and registers Prometheus metrics on a dedicated registry.
func NewDefaultMetricsClient() (*DefaultMetricsClient, error) {
	metrics := &DefaultMetricsClient{
		ServerRequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "server_request_total",
				Help: "Total number of server requests",
			},
			[]string{"status"},
		),
		JobCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transcoding_jobs_total",
				Help: "Transcoding job lifecycle events by resulting status",
			},
			[]string{"status"},
		),
		TierCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transcoding_tiers_total",
				Help: "Quality tier encode attempts by outcome",
			},
			[]string{"tier", "outcome"},
		),
		TierDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transcoding_tier_duration_seconds",
				Help:    "Wall-clock time spent encoding and segmenting one quality tier",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"tier"},
		),
		ActiveJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "transcoding_active_jobs",
				Help: "Jobs currently holding an encoder slot",
			},
		),
		registry: prometheus.NewRegistry(),
	}

	collectors := []prometheus.Collector{
		metrics.ServerRequestCounter,
		metrics.JobCounter,
		metrics.TierCounter,
		metrics.TierDuration,
		metrics.ActiveJobs,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	}
	for _, c := range collectors {
		if err := metrics.registry.Register(c); err != nil {
			Logger.Error("Failed to register metric collector", zap.Error(err))
			return nil, err
		}
	}

	return metrics, nil
}

func (m *DefaultMetricsClient) IncrementServerRequestCounter(status string) {
	m.ServerRequestCounter.WithLabelValues(status).Inc()
}

func (m *DefaultMetricsClient) IncrementJobCounter(status string) {
	m.JobCounter.WithLabelValues(status).Inc()
}

func (m *DefaultMetricsClient) IncrementTierCounter(tier, outcome string) {
	m.TierCounter.WithLabelValues(tier, outcome).Inc()
}

func (m *DefaultMetricsClient) ObserveTierDuration(tier string, d time.Duration) {
	m.TierDuration.WithLabelValues(tier).Observe(d.Seconds())
}

func (m *DefaultMetricsClient) AddActiveJobs(delta float64) {
	m.ActiveJobs.Add(delta)
}

// Handler exposes the registry in the Prometheus text format.
func (m *DefaultMetricsClient) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
