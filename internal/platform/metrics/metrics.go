package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ProposalsCreated   prometheus.Counter
	ProposalsConverted prometheus.Counter
	EntriesSubmitted   *prometheus.CounterVec
	EntriesResolved    *prometheus.CounterVec
	AuthFailures       prometheus.Counter
	EndpointLatency    *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ProposalsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tally_proposals_created_total",
			Help: "Total number of pairing proposals created",
		}),
		ProposalsConverted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tally_proposals_converted_total",
			Help: "Total number of proposals converted into sessions",
		}),
		EntriesSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_entries_submitted_total",
			Help: "Total number of ledger entries submitted",
		}, []string{"kind"}),
		EntriesResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_entries_resolved_total",
			Help: "Total number of ledger entries confirmed or refused",
		}, []string{"kind", "resolution"}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tally_auth_failures_total",
			Help: "Total number of rejected credentials",
		}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tally_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// ObserveEndpointLatency records the latency for an endpoint.
func (m *Metrics) ObserveEndpointLatency(endpoint string, seconds float64) {
	if m == nil {
		return
	}
	m.EndpointLatency.WithLabelValues(endpoint).Observe(seconds)
}
