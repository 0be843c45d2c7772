package dispatch

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the dispatcher.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	QueuedTotal     *prometheus.CounterVec
	RejectedTotal   prometheus.Counter
	QueueDepth      prometheus.Gauge
	Busy            prometheus.Gauge
}

// NewMetrics creates and registers dispatcher metrics once per process.
//
// Metrics:
//   - dealscout_dispatch_requests_total{trigger,status} - handled requests
//   - dealscout_dispatch_request_duration_seconds{trigger} - handler latency
//   - dealscout_dispatch_queued_total{trigger} - requests deferred behind a busy handler
//   - dealscout_dispatch_rejected_total - requests rejected by a full queue
//   - dealscout_dispatch_queue_depth - requests currently waiting
//   - dealscout_dispatch_busy - 1 while a handler is running
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "dealscout_dispatch_requests_total",
					Help: "Total number of dispatched requests by outcome",
				},
				[]string{"trigger", "status"},
			),
			RequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "dealscout_dispatch_request_duration_seconds",
					Help:    "Duration of request handlers in seconds",
					Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
				},
				[]string{"trigger"},
			),
			QueuedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "dealscout_dispatch_queued_total",
					Help: "Total number of requests queued behind a running handler",
				},
				[]string{"trigger"},
			),
			RejectedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "dealscout_dispatch_rejected_total",
					Help: "Total number of requests rejected because the queue was full",
				},
			),
			QueueDepth: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "dealscout_dispatch_queue_depth",
					Help: "Number of requests waiting for the dispatcher",
				},
			),
			Busy: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "dealscout_dispatch_busy",
					Help: "1 while a handler is executing, 0 when idle",
				},
			),
		}
	})
	return globalMetrics
}
