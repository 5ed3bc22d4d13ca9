package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/pixelflow/codec"
	"github.com/c360/pixelflow/errors"
	"github.com/c360/pixelflow/payload"
	"github.com/c360/pixelflow/pkg/buffer"
	"github.com/c360/pixelflow/storage"
	"github.com/c360/pixelflow/transform"
)

// DefaultPopTimeout bounds each consumer pop.
const DefaultPopTimeout = 2 * time.Second

// ConsumerConfig tunes consumer behavior.
type ConsumerConfig struct {
	PopTimeout time.Duration
	Transforms transform.Pipeline
	Retry      errors.RetryConfig
}

// Consumer pops items, transforms them, persists them and resolves their
// futures.
type Consumer struct {
	id      int
	shared  *Shared
	encoder codec.Encoder
	store   storage.Store
	config  ConsumerConfig
	logger  *slog.Logger
}

// NewConsumer creates consumer id. Missing collaborators fail with
// errors.ErrSpawnFailed.
func NewConsumer(id int, shared *Shared, enc codec.Encoder, store storage.Store, cfg ConsumerConfig) (*Consumer, error) {
	if shared == nil || shared.Queue == nil || shared.Tasks == nil {
		return nil, errors.WrapFatal(errors.ErrSpawnFailed, "Consumer", "NewConsumer", "shared state required")
	}
	if enc == nil {
		return nil, errors.WrapFatal(errors.Join(errors.ErrSpawnFailed, errors.ErrMissingConfig),
			"Consumer", "NewConsumer", "encoder required")
	}
	if store == nil {
		return nil, errors.WrapFatal(errors.Join(errors.ErrSpawnFailed, errors.ErrMissingConfig),
			"Consumer", "NewConsumer", "destination required")
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = DefaultPopTimeout
	}

	c := &Consumer{
		id:      id,
		shared:  shared,
		encoder: enc,
		store:   store,
		config:  cfg,
		logger:  shared.Logger.With("component", "consumer", "task_id", id),
	}
	shared.Tasks.SetOperations(RoleConsumer, id, cfg.Transforms.Names())
	return c, nil
}

// Name returns the task name.
func (c *Consumer) Name() string {
	return fmt.Sprintf("consumer-%d", c.id)
}

// Key returns the destination key for img.
func (c *Consumer) Key(img *payload.Image) string {
	return fmt.Sprintf("cons-%d-%s", c.id, img.BaseName())
}

// Run drains the queue. It keeps popping while the run is active or items
// remain, so it only returns once stop was requested and the queue is empty.
// Persists are detached from ctx so cancellation cannot drop queued items.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		rank := c.shared.Tasks.Finish(RoleConsumer, c.id)
		c.logger.Debug("consumer finished", "rank", rank)
	}()

	persistCtx := context.WithoutCancel(ctx)

	for c.shared.Running() || c.shared.Queue.Len() > 0 {
		img, fut, err := c.shared.Queue.Pop(c.config.PopTimeout)
		if err != nil {
			if !errors.IsTimeout(err) {
				c.logger.Warn("pop failed", "error", err)
			}
			continue
		}
		c.process(persistCtx, img, fut)
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, img *payload.Image, fut *buffer.Result) {
	task := c.Name()
	start := time.Now()

	c.config.Transforms.Apply(img)
	key := c.Key(img)
	err := c.persist(ctx, key, img)

	var first bool
	if err != nil {
		first = fut.Resolve(nil, err)
	} else {
		first = fut.Resolve(img, nil)
	}
	if !first {
		c.logger.Error("future resolved twice", "item", img.Name, "error", errors.ErrAlreadyResolved)
	}

	elapsed := time.Since(start)
	m := c.shared.Metrics
	if err != nil {
		c.logger.Warn("item failed", "item", img.Name, "key", key, "error", err)
		c.shared.Tasks.Fail(RoleConsumer, c.id)
		if m != nil {
			m.RecordProcessed(task, "error")
			m.RecordResolved("error")
			m.RecordError(string(RoleConsumer), errors.Classify(err).String())
		}
		return
	}

	c.shared.Tasks.Record(RoleConsumer, c.id, elapsed)
	if m != nil {
		m.RecordProcessed(task, "success")
		m.RecordResolved("success")
		m.RecordProcessingDuration(string(RoleConsumer), "process", elapsed)
	}
	c.logger.Debug("item stored", "item", img.Name, "key", key, "elapsed", elapsed)
}

// persist encodes img in the format implied by its name and writes it under
// key, retrying transient store failures.
func (c *Consumer) persist(ctx context.Context, key string, img *payload.Image) error {
	var buf bytes.Buffer
	if err := c.encoder.Encode(&buf, img, codec.FormatFor(img.Name)); err != nil {
		return errors.WrapInvalid(errors.Join(errors.ErrEncodeFailed, err), "Consumer", "persist", "encode "+key)
	}

	err := c.config.Retry.Retry(ctx, func() error {
		return c.store.Put(ctx, key, buf.Bytes())
	})
	if m := c.shared.Metrics; m != nil {
		m.RecordStoreWrite(err == nil)
	}
	if err == nil {
		return nil
	}

	if errors.IsTransient(err) {
		return errors.WrapTransient(errors.Join(errors.ErrEncodeFailed, err), "Consumer", "persist", "store "+key)
	}
	return errors.WrapInvalid(errors.Join(errors.ErrEncodeFailed, err), "Consumer", "persist", "store "+key)
}
