package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"catalog-sync/internal/domain/model"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	ItemsProcessed  *prometheus.CounterVec
	ItemsFailed     *prometheus.CounterVec
	MutationLatency *prometheus.HistogramVec
	QueueDepthPrice prometheus.Gauge
	QueueDepthStock prometheus.Gauge
	ThrottleWait    prometheus.Gauge
	BatchSize       prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ItemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_items_processed_total",
			Help: "Total number of queue items marked done.",
		}, []string{"kind"}),

		ItemsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_items_failed_total",
			Help: "Total number of queue items marked error.",
		}, []string{"kind"}),

		MutationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shopify_mutation_seconds",
			Help:    "Round-trip latency of one bulk GraphQL mutation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),

		QueueDepthPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth_price",
			Help: "Current number of pending price updates.",
		}),
		QueueDepthStock: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth_stock",
			Help: "Current number of pending stock updates.",
		}),
		ThrottleWait: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "throttle_wait_seconds",
			Help: "Delay the adaptive throttle planned after the last call.",
		}),
		BatchSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "drain_batch_size",
			Help: "Batch size the adaptive throttle planned for the next pass.",
		}),
	}

	reg.MustRegister(
		m.ItemsProcessed,
		m.ItemsFailed,
		m.MutationLatency,
		m.QueueDepthPrice,
		m.QueueDepthStock,
		m.ThrottleWait,
		m.BatchSize,
	)

	return m
}

// WorkerHooks returns the metric callback functions expected by
// worker.MetricHooks. Centralises the prometheus observation calls so the
// drainer stays import-free.
func (m *Metrics) WorkerHooks() (
	onProcessed func(model.Kind, int, time.Duration),
	onFailed func(model.Kind, int),
	onPlan func(time.Duration, int),
) {
	onProcessed = func(kind model.Kind, n int, latency time.Duration) {
		m.ItemsProcessed.WithLabelValues(string(kind)).Add(float64(n))
		m.MutationLatency.WithLabelValues(string(kind)).Observe(latency.Seconds())
	}
	onFailed = func(kind model.Kind, n int) {
		m.ItemsFailed.WithLabelValues(string(kind)).Add(float64(n))
	}
	onPlan = func(delay time.Duration, batchSize int) {
		m.ThrottleWait.Set(delay.Seconds())
		m.BatchSize.Set(float64(batchSize))
	}
	return
}

// SetQueueDepth refreshes the pending-depth gauges.
func (m *Metrics) SetQueueDepth(counts model.QueueCounts) {
	m.QueueDepthPrice.Set(float64(counts.PricesPending))
	m.QueueDepthStock.Set(float64(counts.StockPending))
}
