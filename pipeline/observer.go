package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360/pixelflow/errors"
	"github.com/c360/pixelflow/pkg/buffer"
)

// DefaultObserverInterval is the sampling period.
const DefaultObserverInterval = 100 * time.Millisecond

// Reporter receives observer output. Implementations must not block for long;
// the observer calls them from its own goroutine between samples.
type Reporter interface {
	// Report is called once per sample.
	Report(snap buffer.Snapshot)

	// Resolved is called once for each item the observer saw pending in an
	// earlier sample and whose future has since resolved.
	Resolved(item buffer.SlotView)
}

// Observer periodically samples queue occupancy while the run is active.
type Observer struct {
	shared   *Shared
	reporter Reporter
	interval time.Duration
	logger   *slog.Logger

	// seen holds pending items from earlier samples, keyed by future.
	seen    map[*buffer.Result]buffer.SlotView
	samples int
}

// NewObserver creates the observer task.
func NewObserver(shared *Shared, reporter Reporter, interval time.Duration) (*Observer, error) {
	if shared == nil || shared.Queue == nil {
		return nil, errors.WrapFatal(errors.ErrSpawnFailed, "Observer", "NewObserver", "shared state required")
	}
	if reporter == nil {
		return nil, errors.WrapFatal(errors.Join(errors.ErrSpawnFailed, errors.ErrMissingConfig),
			"Observer", "NewObserver", "reporter required")
	}
	if interval <= 0 {
		interval = DefaultObserverInterval
	}

	return &Observer{
		shared:   shared,
		reporter: reporter,
		interval: interval,
		logger:   shared.Logger.With("component", "observer"),
		seen:     make(map[*buffer.Result]buffer.SlotView),
	}, nil
}

// Name returns the task name.
func (o *Observer) Name() string {
	return "observer"
}

// Run samples until the running flag is cleared or ctx ends.
func (o *Observer) Run(ctx context.Context) error {
	timer := time.NewTimer(o.interval)
	defer timer.Stop()

	for o.shared.Running() {
		o.Sample()

		timer.Reset(o.interval)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}

	o.logger.Debug("observer finished", "samples", o.samples)
	return nil
}

// Sample takes one snapshot, reports it and reports items resolved since the
// previous sample. It never waits on a future.
func (o *Observer) Sample() {
	snap := o.shared.Queue.Snapshot()
	o.samples++
	o.reporter.Report(snap)

	for fut, view := range o.seen {
		if fut.IsResolved() {
			o.reporter.Resolved(view)
			delete(o.seen, fut)
		}
	}

	for _, view := range snap.Occupied() {
		if view.State == buffer.SlotPending && view.Future != nil {
			o.seen[view.Future] = view
		}
	}
}

// Samples returns how many snapshots were taken.
func (o *Observer) Samples() int {
	return o.samples
}
