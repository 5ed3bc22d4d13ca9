// Package worker runs named pipeline tasks as a joinable group.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/c360/pixelflow/errors"
	"github.com/c360/pixelflow/metric"
)

// Task is the body of one goroutine in a Group.
type Task func(ctx context.Context) error

// Group runs tasks on their own goroutines and joins them with Wait.
// A failing task does not cancel its siblings; Wait returns the first error.
type Group struct {
	name   string
	ctx    context.Context
	eg     errgroup.Group
	logger *slog.Logger

	lifecycleMu sync.Mutex
	closed      bool

	// Statistics (atomic)
	spawned  atomic.Int64
	finished atomic.Int64
	failed   atomic.Int64
	panicked atomic.Int64
	active   atomic.Int64

	metrics *groupMetrics
}

// groupMetrics holds Prometheus metrics for group monitoring
type groupMetrics struct {
	active   prometheus.Gauge
	spawned  prometheus.Counter
	failed   prometheus.Counter
	panicked prometheus.Counter
	duration prometheus.Histogram
}

// Option represents a configuration option for a Group
type Option func(*groupConfig)

type groupConfig struct {
	limit    int
	logger   *slog.Logger
	registry *metric.MetricsRegistry
}

// WithLimit bounds the number of concurrently running tasks. Go blocks while
// the limit is reached.
func WithLimit(n int) Option {
	return func(c *groupConfig) {
		c.limit = n
	}
}

// WithLogger sets the logger used for task failures and panics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *groupConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetricsRegistry registers the group's metrics under its name.
func WithMetricsRegistry(registry *metric.MetricsRegistry) Option {
	return func(c *groupConfig) {
		c.registry = registry
	}
}

// NewGroup creates a group whose tasks receive ctx. Metrics registration
// failure is returned as a fatal error.
func NewGroup(ctx context.Context, name string, opts ...Option) (*Group, error) {
	cfg := &groupConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	g := &Group{
		name:   name,
		ctx:    ctx,
		logger: cfg.logger.With("component", "worker", "group", name),
	}
	if cfg.limit > 0 {
		g.eg.SetLimit(cfg.limit)
	}

	if cfg.registry != nil {
		m, err := newGroupMetrics(cfg.registry, name)
		if err != nil {
			return nil, errors.WrapFatal(err, "Group", "NewGroup", "register metrics")
		}
		g.metrics = m
	}

	return g, nil
}

func newGroupMetrics(registry *metric.MetricsRegistry, name string) (*groupMetrics, error) {
	labels := prometheus.Labels{"group": name}
	m := &groupMetrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "worker",
			Name:        "active_tasks",
			Help:        "Tasks currently running",
			ConstLabels: labels,
		}),
		spawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "worker",
			Name:        "spawned_total",
			Help:        "Total tasks spawned",
			ConstLabels: labels,
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "worker",
			Name:        "failed_total",
			Help:        "Total tasks that returned an error",
			ConstLabels: labels,
		}),
		panicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "worker",
			Name:        "panics_total",
			Help:        "Total tasks that panicked",
			ConstLabels: labels,
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "worker",
			Name:        "task_duration_seconds",
			Help:        "Task run time",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}

	component := "worker_" + name
	if err := registry.RegisterGauge(component, "active_tasks", m.active); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "spawned", m.spawned); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "failed", m.failed); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "panics", m.panicked); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram(component, "task_duration", m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// Go starts task under name. It fails with ErrSpawnFailed once Wait has been
// called.
func (g *Group) Go(name string, task Task) error {
	if task == nil {
		return errors.WrapFatal(errors.Join(errors.ErrSpawnFailed, ErrNilTask), "Group", "Go", "spawn "+name)
	}

	g.lifecycleMu.Lock()
	if g.closed {
		g.lifecycleMu.Unlock()
		return errors.WrapFatal(errors.Join(errors.ErrSpawnFailed, ErrGroupClosed), "Group", "Go", "spawn "+name)
	}
	defer g.lifecycleMu.Unlock()

	g.spawned.Add(1)
	if g.metrics != nil {
		g.metrics.spawned.Inc()
	}

	// Held across eg.Go so Wait cannot start between the check and the Add.
	g.eg.Go(func() error {
		return g.run(name, task)
	})
	return nil
}

func (g *Group) run(name string, task Task) (err error) {
	g.active.Add(1)
	if g.metrics != nil {
		g.metrics.active.Inc()
	}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			g.panicked.Add(1)
			if g.metrics != nil {
				g.metrics.panicked.Inc()
			}
			g.logger.Error("task panicked", "task", name, "panic", r, "stack", string(debug.Stack()))
			err = errors.WrapFatal(fmt.Errorf("%w: %v", ErrTaskPanicked, r), "Group", "run", "task "+name)
		}

		g.finished.Add(1)
		g.active.Add(-1)
		if g.metrics != nil {
			g.metrics.active.Dec()
			g.metrics.duration.Observe(time.Since(start).Seconds())
		}

		if err != nil {
			g.failed.Add(1)
			if g.metrics != nil {
				g.metrics.failed.Inc()
			}
			g.logger.Warn("task failed", "task", name, "error", err)
		}
	}()

	return task(g.ctx)
}

// Wait closes the group to new tasks, blocks until every task returns and
// returns the first non-nil error.
func (g *Group) Wait() error {
	g.lifecycleMu.Lock()
	g.closed = true
	g.lifecycleMu.Unlock()

	return g.eg.Wait()
}

// Active returns the number of running tasks.
func (g *Group) Active() int {
	return int(g.active.Load())
}

// Name returns the group name.
func (g *Group) Name() string {
	return g.name
}

// Stats returns current group statistics
func (g *Group) Stats() GroupStats {
	return GroupStats{
		Name:     g.name,
		Spawned:  g.spawned.Load(),
		Finished: g.finished.Load(),
		Failed:   g.failed.Load(),
		Panicked: g.panicked.Load(),
		Active:   g.active.Load(),
	}
}

// GroupStats represents task group statistics
type GroupStats struct {
	Name     string `json:"name"`
	Spawned  int64  `json:"spawned"`
	Finished int64  `json:"finished"`
	Failed   int64  `json:"failed"`
	Panicked int64  `json:"panicked"`
	Active   int64  `json:"active"`
}
