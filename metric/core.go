package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every pixelflow metric name.
const Namespace = "pixelflow"

// Metrics contains pipeline-level metrics shared by all tasks
type Metrics struct {
	PipelineState      prometheus.Gauge
	ItemsLoaded        *prometheus.CounterVec
	ItemsProcessed     *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	ErrorsTotal        *prometheus.CounterVec
	FuturesResolved    *prometheus.CounterVec
	StoreWrites        *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		PipelineState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "pipeline",
				Name:      "state",
				Help:      "Controller state (0=init, 1=running, 2=draining, 3=stopped)",
			},
		),

		ItemsLoaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "producer",
				Name:      "items_loaded_total",
				Help:      "Total number of items decoded and enqueued",
			},
			[]string{"task", "status"},
		),

		ItemsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "consumer",
				Name:      "items_processed_total",
				Help:      "Total number of items dequeued and processed",
			},
			[]string{"task", "status"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "processing",
				Name:      "duration_seconds",
				Help:      "Per-item processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"role", "operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by role and class",
			},
			[]string{"role", "class"},
		),

		FuturesResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "futures",
				Name:      "resolved_total",
				Help:      "Total number of completion handles resolved",
			},
			[]string{"outcome"},
		),

		StoreWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "store",
				Name:      "writes_total",
				Help:      "Total number of destination writes",
			},
			[]string{"status"},
		),
	}
}

func (c *Metrics) mustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		c.PipelineState,
		c.ItemsLoaded,
		c.ItemsProcessed,
		c.ProcessingDuration,
		c.ErrorsTotal,
		c.FuturesResolved,
		c.StoreWrites,
	)
}

// RecordPipelineState updates the controller state gauge
func (c *Metrics) RecordPipelineState(state int) {
	c.PipelineState.Set(float64(state))
}

// RecordLoaded increments the producer counter
func (c *Metrics) RecordLoaded(task, status string) {
	c.ItemsLoaded.WithLabelValues(task, status).Inc()
}

// RecordProcessed increments the consumer counter
func (c *Metrics) RecordProcessed(task, status string) {
	c.ItemsProcessed.WithLabelValues(task, status).Inc()
}

// RecordProcessingDuration records processing time
func (c *Metrics) RecordProcessingDuration(role, operation string, duration time.Duration) {
	c.ProcessingDuration.WithLabelValues(role, operation).Observe(duration.Seconds())
}

// RecordError increments error counter
func (c *Metrics) RecordError(role, class string) {
	c.ErrorsTotal.WithLabelValues(role, class).Inc()
}

// RecordResolved counts a future resolution
func (c *Metrics) RecordResolved(outcome string) {
	c.FuturesResolved.WithLabelValues(outcome).Inc()
}

// RecordStoreWrite counts a destination write
func (c *Metrics) RecordStoreWrite(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.StoreWrites.WithLabelValues(status).Inc()
}
