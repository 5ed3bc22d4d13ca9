package objectstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/pixelflow/metric"
)

// storeMetrics holds Prometheus metrics for ObjectStore operations.
type storeMetrics struct {
	ops     *prometheus.CounterVec   // By operation
	latency *prometheus.HistogramVec // By operation
	errors  *prometheus.CounterVec   // By operation
	bytes   prometheus.Counter
}

// newStoreMetrics creates and registers ObjectStore metrics with the provided registry.
func newStoreMetrics(registry *metric.MetricsRegistry, bucket string) (*storeMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	labels := prometheus.Labels{"bucket": bucket}
	m := &storeMetrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "objectstore",
			Name:        "operations_total",
			Help:        "Total number of object store operations",
			ConstLabels: labels,
		}, []string{"operation"}), // operation: put, get, list, delete

		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "objectstore",
			Name:        "operation_duration_seconds",
			Help:        "Object store operation duration in seconds",
			ConstLabels: labels,
			Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
		}, []string{"operation"}),

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "objectstore",
			Name:        "operation_errors_total",
			Help:        "Total number of object store operation errors",
			ConstLabels: labels,
		}, []string{"operation"}),

		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "objectstore",
			Name:        "written_bytes_total",
			Help:        "Total bytes written to the bucket",
			ConstLabels: labels,
		}),
	}

	prefix := "objectstore_" + bucket

	if err := registry.RegisterCounterVec(prefix, "ops", m.ops); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec(prefix, "latency", m.latency); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(prefix, "errors", m.errors); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "written_bytes", m.bytes); err != nil {
		return nil, err
	}

	return m, nil
}

// observe records one operation. Safe on a nil receiver.
func (m *storeMetrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op).Inc()
	m.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.errors.WithLabelValues(op).Inc()
	}
}

func (m *storeMetrics) written(n int) {
	if m == nil {
		return
	}
	m.bytes.Add(float64(n))
}
