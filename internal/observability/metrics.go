package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "smartcity"

// Metrics holds the Prometheus collectors for the assistant backend.
type Metrics struct {
	ProviderRequests *prometheus.CounterVec   // labels: provider, outcome={success,error,not_found,malformed}
	ProviderDuration *prometheus.HistogramVec // labels: provider
	ReportsServed    *prometheus.CounterVec   // labels: module, outcome
	Generations      *prometheus.CounterVec   // labels: purpose={chat,summary,forecast_summary}, outcome
	FeedbackSaved    prometheus.Counter
	TipsSaved        prometheus.Counter
	ReportsPublished prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Upstream provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Upstream provider request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		ReportsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_served_total",
			Help:      "City reports built by module and outcome.",
		}, []string{"module", "outcome"}),
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "text_generations_total",
			Help:      "Text generation requests by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		FeedbackSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_saved_total",
			Help:      "Feedback rows appended to the feedback log.",
		}),
		TipsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eco_tips_saved_total",
			Help:      "User eco tips appended to the tip log.",
		}),
		ReportsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_events_published_total",
			Help:      "Report events written to Kafka.",
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ProviderRequests,
		m.ProviderDuration,
		m.ReportsServed,
		m.Generations,
		m.FeedbackSaved,
		m.TipsSaved,
		m.ReportsPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
