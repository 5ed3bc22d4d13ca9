package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/c360/pixelflow/codec"
	"github.com/c360/pixelflow/errors"
	"github.com/c360/pixelflow/health"
	"github.com/c360/pixelflow/metric"
	"github.com/c360/pixelflow/pkg/buffer"
	"github.com/c360/pixelflow/pkg/worker"
	"github.com/c360/pixelflow/source"
	"github.com/c360/pixelflow/storage"
	"github.com/c360/pixelflow/transform"
)

// State is the controller lifecycle state.
type State int32

const (
	// StateInit allocates the queue and constructs tasks.
	StateInit State = iota
	// StateRunning has producers pushing and consumers popping.
	StateRunning
	// StateDraining has producers joined and consumers emptying the queue.
	StateDraining
	// StateStopped has every task joined.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Dependencies are the collaborators a run is wired to.
type Dependencies struct {
	Source   source.Source
	Decoder  codec.Decoder
	Encoder  codec.Encoder
	Store    storage.Store
	Reporter Reporter // nil disables the observer

	// Registry is optional. When set, queue, worker and pipeline metrics are
	// registered with it. A registry serves a single run.
	Registry *metric.MetricsRegistry

	// Health is optional. The lifecycle is reported under "pipeline" and
	// each task group under its own name.
	Health *health.Monitor
	Logger *slog.Logger
}

// Controller owns one pipeline run.
type Controller struct {
	config Config
	deps   Dependencies
	runID  uuid.UUID
	logger *slog.Logger

	state   atomic.Int32
	started atomic.Bool
}

// NewController validates cfg and returns a controller in StateInit.
func NewController(cfg Config, deps Dependencies) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	id := uuid.New()
	return &Controller{
		config: cfg,
		deps:   deps,
		runID:  id,
		logger: deps.Logger.With("component", "controller", "run_id", id.String()),
	}, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// RunID identifies this run in logs and the report.
func (c *Controller) RunID() uuid.UUID {
	return c.runID
}

func (c *Controller) setState(s State, core *metric.Metrics) {
	c.state.Store(int32(s))
	if core != nil {
		core.RecordPipelineState(int(s))
	}
	c.logger.Info("pipeline state", "state", s.String())

	if c.deps.Health == nil {
		return
	}
	switch s {
	case StateDraining:
		c.deps.Health.UpdateDegraded("pipeline", s.String())
	default:
		c.deps.Health.UpdateHealthy("pipeline", s.String())
	}
}

// waitGroup joins g, reports its outcome to the health monitor and appends
// any error to errs.
func (c *Controller) waitGroup(g *worker.Group, errs []string) []string {
	err := g.Wait()
	if c.deps.Health != nil {
		c.deps.Health.Update(g.Name(), health.FromError(g.Name(), err))
	}
	if err != nil {
		errs = append(errs, err.Error())
	}
	return errs
}

// run holds everything built during Init.
type run struct {
	shared    *Shared
	queue     *buffer.BoundedQueue
	producers []*Producer
	consumers []*Consumer
	observer  *Observer

	producerGroup *worker.Group
	consumerGroup *worker.Group
	observerGroup *worker.Group
}

// Run executes the whole lifecycle and blocks until Stopped.
//
// Queue allocation or task construction failures are fatal and returned
// before any task starts. Task errors after that are logged and listed in the
// report; the queue is always drained. Cancelling ctx stops producers early.
func (c *Controller) Run(ctx context.Context) (*Report, error) {
	if !c.started.CompareAndSwap(false, true) {
		return nil, errors.WrapFatal(errors.ErrAlreadyStarted, "Controller", "Run", "check state")
	}

	var core *metric.Metrics
	if c.deps.Registry != nil {
		core = c.deps.Registry.CoreMetrics()
	}
	c.setState(StateInit, core)

	r, err := c.init(ctx, core)
	if err != nil {
		return nil, c.abort(err, core)
	}
	return c.execute(r, core)
}

// abort moves to Stopped and marks the pipeline unhealthy with err.
func (c *Controller) abort(err error, core *metric.Metrics) error {
	c.setState(StateStopped, core)
	if c.deps.Health != nil {
		c.deps.Health.Update("pipeline", health.FromError("pipeline", err))
	}
	return err
}

// execute runs a constructed pipeline through Running, Draining and Stopped.
func (c *Controller) execute(r *run, core *metric.Metrics) (*Report, error) {
	started := time.Now()
	r.shared.Start()
	c.setState(StateRunning, core)

	if err := c.spawn(r); err != nil {
		c.logger.Error("task spawn failed", "error", err)
		r.shared.Stop()
		_ = r.producerGroup.Wait()
		_ = r.consumerGroup.Wait()
		_ = r.observerGroup.Wait()
		return nil, c.abort(err, core)
	}

	var taskErrs []string
	taskErrs = c.waitGroup(r.producerGroup, taskErrs)

	c.setState(StateDraining, core)
	r.shared.Stop()

	taskErrs = c.waitGroup(r.consumerGroup, taskErrs)
	taskErrs = c.waitGroup(r.observerGroup, taskErrs)
	c.setState(StateStopped, core)

	report := &Report{
		RunID:     c.runID.String(),
		Started:   started,
		Elapsed:   time.Since(started),
		Capacity:  r.queue.Capacity(),
		Producers: r.shared.Tasks.Producers(),
		Consumers: r.shared.Tasks.Consumers(),
		Queue:     r.queue.Stats().Summary(),
		Groups: []worker.GroupStats{
			r.producerGroup.Stats(),
			r.consumerGroup.Stats(),
			r.observerGroup.Stats(),
		},
		Errors: taskErrs,
	}
	report.tally()

	if c.config.AwaitResults {
		var confirmed, rejected int
		for _, p := range r.producers {
			ok, bad := p.Results()
			confirmed += ok
			rejected += bad
		}
		c.logger.Info("producer confirmations", "confirmed", confirmed, "rejected", rejected)
	}

	c.logger.Info("pipeline finished",
		"elapsed", report.Elapsed,
		"loaded", report.Loaded,
		"processed", report.Processed,
		"failed", report.Failed)
	return report, nil
}

// init allocates the queue and constructs every task. Nothing runs yet.
func (c *Controller) init(ctx context.Context, core *metric.Metrics) (*run, error) {
	var qopts []buffer.Option
	qopts = append(qopts, buffer.WithLogger(c.logger))
	if c.deps.Registry != nil {
		qopts = append(qopts, buffer.WithMetrics(c.deps.Registry, "pipeline"))
	}

	queue, err := buffer.New(c.config.Capacity, qopts...)
	if err != nil {
		c.logger.Error("queue allocation failed", "capacity", c.config.Capacity, "error", err)
		return nil, err
	}

	r := &run{
		queue:  queue,
		shared: NewShared(queue, NewTaskTable(c.config.Producers, c.config.Consumers), core, c.logger),
	}

	var limiter *rate.Limiter
	if c.config.LoadRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.config.LoadRate), 1)
	}
	for i := 0; i < c.config.Producers; i++ {
		p, err := NewProducer(i, r.shared, c.deps.Source, c.deps.Decoder, ProducerConfig{
			AwaitResults: c.config.AwaitResults,
			AwaitTimeout: c.config.AwaitTimeout,
			Limiter:      limiter,
		})
		if err != nil {
			return nil, c.spawnFailed(err)
		}
		r.producers = append(r.producers, p)
	}

	transforms := transform.Default(c.config.Brightness, c.config.Contrast)
	for i := 0; i < c.config.Consumers; i++ {
		cons, err := NewConsumer(i, r.shared, c.deps.Encoder, c.deps.Store, ConsumerConfig{
			PopTimeout: c.config.PopTimeout,
			Transforms: transforms,
			Retry:      c.config.Retry,
		})
		if err != nil {
			return nil, c.spawnFailed(err)
		}
		r.consumers = append(r.consumers, cons)
	}

	if c.config.ObserverEnabled && c.deps.Reporter != nil {
		obs, err := NewObserver(r.shared, c.deps.Reporter, c.config.ObserverInterval)
		if err != nil {
			return nil, c.spawnFailed(err)
		}
		r.observer = obs
	}

	gopts := []worker.Option{worker.WithLogger(c.logger)}
	if c.deps.Registry != nil {
		gopts = append(gopts, worker.WithMetricsRegistry(c.deps.Registry))
	}
	groups := make([]*worker.Group, 3)
	for i, name := range []string{"producers", "consumers", "observer"} {
		g, err := worker.NewGroup(ctx, name, gopts...)
		if err != nil {
			return nil, c.spawnFailed(err)
		}
		groups[i] = g
	}
	r.producerGroup, r.consumerGroup, r.observerGroup = groups[0], groups[1], groups[2]

	return r, nil
}

func (c *Controller) spawnFailed(err error) error {
	c.logger.Error("task construction failed", "error", err)
	return errors.WrapFatal(errors.Join(errors.ErrSpawnFailed, err), "Controller", "Run", "construct tasks")
}

// spawn starts consumers and the observer before producers so the first push
// already has someone to pop it.
func (c *Controller) spawn(r *run) error {
	for _, cons := range r.consumers {
		if err := r.consumerGroup.Go(cons.Name(), cons.Run); err != nil {
			return err
		}
	}
	if r.observer != nil {
		if err := r.observerGroup.Go(r.observer.Name(), r.observer.Run); err != nil {
			return err
		}
	}
	for _, p := range r.producers {
		if err := r.producerGroup.Go(p.Name(), p.Run); err != nil {
			return err
		}
	}
	return nil
}
