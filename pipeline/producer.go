package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/pixelflow/codec"
	"github.com/c360/pixelflow/errors"
	"github.com/c360/pixelflow/payload"
	"github.com/c360/pixelflow/pkg/buffer"
	"github.com/c360/pixelflow/source"
)

// ProducerConfig tunes producer behavior.
type ProducerConfig struct {
	// AwaitResults makes the producer wait on every future it obtained before
	// it returns, logging each item's outcome.
	AwaitResults bool

	// AwaitTimeout bounds each wait in AwaitResults mode. Zero waits until
	// the item resolves or the run context ends.
	AwaitTimeout time.Duration

	// Limiter, when set, is waited on before every load. Producers of one
	// run share it so the rate applies to the pool.
	Limiter *rate.Limiter
}

// Producer loads items from a source and pushes them onto the queue.
type Producer struct {
	id      int
	shared  *Shared
	source  source.Source
	decoder codec.Decoder
	config  ProducerConfig
	logger  *slog.Logger

	confirmed int
	rejected  int
}

// NewProducer creates producer id. Missing collaborators fail with
// errors.ErrSpawnFailed.
func NewProducer(id int, shared *Shared, src source.Source, dec codec.Decoder, cfg ProducerConfig) (*Producer, error) {
	if shared == nil || shared.Queue == nil || shared.Tasks == nil {
		return nil, errors.WrapFatal(errors.ErrSpawnFailed, "Producer", "NewProducer", "shared state required")
	}
	if src == nil {
		return nil, errors.WrapFatal(errors.Join(errors.ErrSpawnFailed, errors.ErrMissingConfig),
			"Producer", "NewProducer", "source required")
	}
	if dec == nil {
		return nil, errors.WrapFatal(errors.Join(errors.ErrSpawnFailed, errors.ErrMissingConfig),
			"Producer", "NewProducer", "decoder required")
	}

	return &Producer{
		id:      id,
		shared:  shared,
		source:  src,
		decoder: dec,
		config:  cfg,
		logger:  shared.Logger.With("component", "producer", "task_id", id),
	}, nil
}

// Name returns the task name.
func (p *Producer) Name() string {
	return fmt.Sprintf("producer-%d", p.id)
}

// Run walks its own cursor over the source until it is exhausted, the running
// flag is cleared or ctx ends. Load failures skip the item.
func (p *Producer) Run(ctx context.Context) error {
	defer func() {
		rank := p.shared.Tasks.Finish(RoleProducer, p.id)
		p.logger.Debug("producer finished", "rank", rank)
	}()

	cursor, err := p.source.Open(ctx)
	if err != nil {
		return errors.Wrap(err, "Producer", "Run", "open source")
	}
	defer cursor.Close()

	var pending []*buffer.Result
	for p.shared.Running() {
		name, err := cursor.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return errors.Wrap(err, "Producer", "Run", "next item")
		}

		if lim := p.config.Limiter; lim != nil {
			if err := lim.Wait(ctx); err != nil {
				break
			}
		}

		fut, ok := p.load(ctx, name)
		if !ok {
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if p.config.AwaitResults {
			pending = append(pending, fut)
		}
	}

	if len(pending) > 0 {
		p.await(ctx, pending)
	}
	return nil
}

func (p *Producer) load(ctx context.Context, name string) (*buffer.Result, bool) {
	task := p.Name()
	start := time.Now()

	img, err := p.decoder.Decode(name)
	if err != nil {
		p.logger.Warn("skipping item", "item", name, "error", err)
		p.fail(task, err)
		return nil, false
	}
	img.ProducerID = p.id

	fut, err := p.shared.Queue.PushContext(ctx, img)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("push rejected", "item", name, "error", err)
			p.fail(task, err)
		}
		return nil, false
	}

	elapsed := time.Since(start)
	p.shared.Tasks.Record(RoleProducer, p.id, elapsed)
	if m := p.shared.Metrics; m != nil {
		m.RecordLoaded(task, "success")
		m.RecordProcessingDuration(string(RoleProducer), "load", elapsed)
	}
	p.logger.Debug("item enqueued", "item", name, "elapsed", elapsed)
	return fut, true
}

func (p *Producer) fail(task string, err error) {
	p.shared.Tasks.Fail(RoleProducer, p.id)
	if m := p.shared.Metrics; m != nil {
		m.RecordLoaded(task, "error")
		m.RecordError(string(RoleProducer), errors.Classify(err).String())
	}
}

func (p *Producer) await(ctx context.Context, pending []*buffer.Result) {
	for _, fut := range pending {
		var (
			img *payload.Image
			err error
		)
		if p.config.AwaitTimeout > 0 {
			img, err = fut.AwaitTimeout(p.config.AwaitTimeout)
		} else {
			img, err = fut.AwaitContext(ctx)
		}

		switch {
		case err == nil:
			p.confirmed++
			p.logger.Info("item confirmed", "item", img.String())
		case errors.IsTimeout(err), err == ctx.Err():
			p.logger.Warn("stopped waiting for item", "error", err)
			return
		default:
			p.rejected++
			p.logger.Warn("item failed downstream", "error", err)
		}
	}
}

// Results returns how many awaited items succeeded and failed. Only
// meaningful after Run returns with AwaitResults set.
func (p *Producer) Results() (confirmed, rejected int) {
	return p.confirmed, p.rejected
}
