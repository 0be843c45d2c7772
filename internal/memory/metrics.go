package memory

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the memory store.
type Metrics struct {
	PersistTotal    *prometheus.CounterVec
	PersistDuration prometheus.Histogram
	MutationsTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers the memory metrics once per process.
//
// Metrics:
//   - dealscout_memory_persist_total{result} - snapshot writes by outcome
//   - dealscout_memory_persist_duration_seconds - snapshot write latency
//   - dealscout_memory_mutations_total{persona} - accepted state mutations
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			PersistTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "dealscout_memory_persist_total",
					Help: "Total number of memory snapshot writes",
				},
				[]string{"result"}, // "success" or "error"
			),
			PersistDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "dealscout_memory_persist_duration_seconds",
					Help:    "Duration of memory snapshot writes in seconds",
					Buckets: prometheus.DefBuckets,
				},
			),
			MutationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "dealscout_memory_mutations_total",
					Help: "Total number of persona memory mutations",
				},
				[]string{"persona"},
			),
		}
	})
	return globalMetrics
}
