package worker

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/c360/pixelflow/errors"
	"github.com/c360/pixelflow/metric"
)

func TestGroup_RunsAllTasks(t *testing.T) {
	g, err := NewGroup(context.Background(), "test")
	require.NoError(t, err)

	var count atomic.Int64
	for i := 0; i < 10; i++ {
		require.NoError(t, g.Go("task", func(context.Context) error {
			count.Add(1)
			return nil
		}))
	}

	require.NoError(t, g.Wait())
	assert.Equal(t, int64(10), count.Load())

	stats := g.Stats()
	assert.Equal(t, int64(10), stats.Spawned)
	assert.Equal(t, int64(10), stats.Finished)
	assert.Equal(t, int64(0), stats.Active)
	assert.Equal(t, 0, g.Active())
}

func TestGroup_ErrorDoesNotCancelSiblings(t *testing.T) {
	g, err := NewGroup(context.Background(), "test")
	require.NoError(t, err)

	boom := stderrors.New("boom")
	release := make(chan struct{})
	var sibling atomic.Bool

	require.NoError(t, g.Go("fails", func(context.Context) error {
		return boom
	}))
	require.NoError(t, g.Go("slow", func(ctx context.Context) error {
		<-release
		sibling.Store(ctx.Err() == nil)
		return nil
	}))

	time.Sleep(20 * time.Millisecond)
	close(release)

	err = g.Wait()
	assert.ErrorIs(t, err, boom)
	assert.True(t, sibling.Load(), "sibling context must stay live")
	assert.Equal(t, int64(1), g.Stats().Failed)
}

func TestGroup_RecoversPanic(t *testing.T) {
	g, err := NewGroup(context.Background(), "test")
	require.NoError(t, err)

	require.NoError(t, g.Go("panics", func(context.Context) error {
		panic("kaboom")
	}))

	err = g.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskPanicked)
	assert.True(t, errors.IsFatal(err))
	assert.Contains(t, err.Error(), "kaboom")

	stats := g.Stats()
	assert.Equal(t, int64(1), stats.Panicked)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestGroup_GoAfterWait(t *testing.T) {
	g, err := NewGroup(context.Background(), "test")
	require.NoError(t, err)
	require.NoError(t, g.Wait())

	err = g.Go("late", func(context.Context) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrSpawnFailed)
	assert.ErrorIs(t, err, ErrGroupClosed)
}

func TestGroup_NilTask(t *testing.T) {
	g, err := NewGroup(context.Background(), "test")
	require.NoError(t, err)

	err = g.Go("nil", nil)
	assert.ErrorIs(t, err, errors.ErrSpawnFailed)
	assert.ErrorIs(t, err, ErrNilTask)
}

func TestGroup_ContextPropagation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g, err := NewGroup(ctx, "test")
	require.NoError(t, err)

	require.NoError(t, g.Go("waits", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	cancel()
	assert.ErrorIs(t, g.Wait(), context.Canceled)
}

func TestGroup_Limit(t *testing.T) {
	g, err := NewGroup(context.Background(), "test", WithLimit(2))
	require.NoError(t, err)

	var running, peak atomic.Int64
	for i := 0; i < 6; i++ {
		require.NoError(t, g.Go("limited", func(context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil
		}))
	}

	require.NoError(t, g.Wait())
	assert.LessOrEqual(t, peak.Load(), int64(2))
}

func TestGroup_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	g, err := NewGroup(context.Background(), "consumers", WithMetricsRegistry(registry))
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, g.Go("blocked", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	require.NoError(t, g.Go("fails", func(context.Context) error {
		return stderrors.New("nope")
	}))

	<-started
	close(release)
	require.Error(t, g.Wait())

	assert.Equal(t, 2.0, promtestutil.ToFloat64(g.metrics.spawned))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(g.metrics.failed))
	assert.Equal(t, 0.0, promtestutil.ToFloat64(g.metrics.active))

	var hist dto.Metric
	require.NoError(t, g.metrics.duration.Write(&hist))
	assert.Equal(t, uint64(2), hist.GetHistogram().GetSampleCount())

	// Same group name cannot register twice
	_, err = NewGroup(context.Background(), "consumers", WithMetricsRegistry(registry))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}
