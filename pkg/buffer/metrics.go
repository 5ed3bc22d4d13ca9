package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/pixelflow/metric"
)

// queueMetrics holds Prometheus metrics for queue operations.
type queueMetrics struct {
	pushes      prometheus.Counter
	pops        prometheus.Counter
	snapshots   prometheus.Counter
	pushWaits   prometheus.Counter
	popTimeouts prometheus.Counter

	size        prometheus.Gauge
	utilization prometheus.Gauge
}

func queueCounter(prefix, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metric.Namespace,
		Subsystem:   "queue",
		Name:        name,
		ConstLabels: prometheus.Labels{"component": prefix},
		Help:        help,
	})
}

func queueGauge(prefix, name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   metric.Namespace,
		Subsystem:   "queue",
		Name:        name,
		ConstLabels: prometheus.Labels{"component": prefix},
		Help:        help,
	})
}

// newQueueMetrics creates and registers queue metrics with the provided registry.
func newQueueMetrics(registry *metric.MetricsRegistry, prefix string) (*queueMetrics, error) {
	m := &queueMetrics{
		pushes:      queueCounter(prefix, "pushes_total", "Total number of queue push operations"),
		pops:        queueCounter(prefix, "pops_total", "Total number of queue pop operations"),
		snapshots:   queueCounter(prefix, "snapshots_total", "Total number of observer snapshots"),
		pushWaits:   queueCounter(prefix, "push_waits_total", "Total number of pushes that blocked on a full queue"),
		popTimeouts: queueCounter(prefix, "pop_timeouts_total", "Total number of pops that timed out"),
		size:        queueGauge(prefix, "size", "Current number of items in queue"),
		utilization: queueGauge(prefix, "utilization", "Queue utilization as a fraction (0.0 to 1.0)"),
	}

	counters := map[string]prometheus.Counter{
		"queue_pushes":       m.pushes,
		"queue_pops":         m.pops,
		"queue_snapshots":    m.snapshots,
		"queue_push_waits":   m.pushWaits,
		"queue_pop_timeouts": m.popTimeouts,
	}
	for name, c := range counters {
		if err := registry.RegisterCounter(prefix, name, c); err != nil {
			return nil, err
		}
	}
	if err := registry.RegisterGauge(prefix, "queue_size", m.size); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "queue_utilization", m.utilization); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *queueMetrics) recordPush(size, capacity int) {
	m.pushes.Inc()
	m.updateSize(size, capacity)
}

func (m *queueMetrics) recordPop(size, capacity int) {
	m.pops.Inc()
	m.updateSize(size, capacity)
}

func (m *queueMetrics) recordSnapshot() {
	m.snapshots.Inc()
}

func (m *queueMetrics) recordPushWait() {
	m.pushWaits.Inc()
}

func (m *queueMetrics) recordPopTimeout() {
	m.popTimeouts.Inc()
}

func (m *queueMetrics) updateSize(size, capacity int) {
	m.size.Set(float64(size))
	m.utilization.Set(float64(size) / float64(capacity))
}
