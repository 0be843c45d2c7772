package enrich

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for upstream API calls.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RetriesTotal    *prometheus.CounterVec
}

// NewMetrics creates and registers enrichment metrics once per process.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "dealscout_enrich_requests_total",
					Help: "Total upstream API calls by endpoint and result",
				},
				[]string{"endpoint", "result"},
			),
			RequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "dealscout_enrich_request_duration_seconds",
					Help:    "Upstream API call latency including retries",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"endpoint"},
			),
			RetriesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "dealscout_enrich_retries_total",
					Help: "Total retried upstream API attempts",
				},
				[]string{"endpoint"},
			),
		}
	})
	return globalMetrics
}
