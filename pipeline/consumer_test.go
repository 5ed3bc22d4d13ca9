package pipeline

import (
	"bytes"
	"context"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/pixelflow/codec"
	"github.com/c360/pixelflow/errors"
	"github.com/c360/pixelflow/payload"
	"github.com/c360/pixelflow/pkg/buffer"
	"github.com/c360/pixelflow/testutil"
	"github.com/c360/pixelflow/transform"
)

func testConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		PopTimeout: 20 * time.Millisecond,
		Transforms: transform.Default(transform.DefaultBrightness, transform.DefaultContrast),
	}
}

func TestNewConsumer_MissingCollaborators(t *testing.T) {
	shared, _ := newTestShared(t, 2, 1, 1)

	_, err := NewConsumer(0, shared, nil, testutil.NewMemoryStore(), testConsumerConfig())
	assert.ErrorIs(t, err, errors.ErrSpawnFailed)
	assert.True(t, errors.IsFatal(err))

	_, err = NewConsumer(0, shared, codec.New(), nil, testConsumerConfig())
	assert.ErrorIs(t, err, errors.ErrSpawnFailed)

	_, err = NewConsumer(0, nil, codec.New(), testutil.NewMemoryStore(), testConsumerConfig())
	assert.ErrorIs(t, err, errors.ErrSpawnFailed)
}

func TestConsumer_DrainsAfterStop(t *testing.T) {
	shared, q := newTestShared(t, 4, 1, 4)
	store := testutil.NewMemoryStore()

	names := []string{"dir/a.png", "dir/b.jpg", "dir/c.bmp"}
	results := make([]*buffer.Result, 0, len(names))
	for _, n := range names {
		fut, err := q.Push(testutil.NewImage(n, 2, 2))
		require.NoError(t, err)
		results = append(results, fut)
	}

	cons, err := NewConsumer(3, shared, codec.New(), store, testConsumerConfig())
	require.NoError(t, err)

	// Running flag already cleared: the consumer must still empty the queue
	require.NoError(t, cons.Run(context.Background()))

	assert.Equal(t, 0, q.Len())
	for _, f := range results {
		assert.True(t, f.IsResolved())
	}

	keys, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"cons-3-a.png", "cons-3-b.jpg", "cons-3-c.bmp"}, keys)
}

func TestConsumer_ResolvesWithTransformedImage(t *testing.T) {
	shared, q := newTestShared(t, 2, 1, 1)
	store := testutil.NewMemoryStore()

	src := payload.New("in/x.png", 1, 1, 3)
	copy(src.Pix, []byte{0, 0, 0})
	fut, err := q.Push(src)
	require.NoError(t, err)

	cons, err := NewConsumer(0, shared, codec.New(), store, ConsumerConfig{
		PopTimeout: 20 * time.Millisecond,
		Transforms: transform.Pipeline{{Name: "invert", Apply: transform.Invert}},
	})
	require.NoError(t, err)
	require.NoError(t, cons.Run(context.Background()))

	img, err := fut.AwaitTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 255, 255}, img.Pix)
	assert.Equal(t, []byte{0, 0, 0}, src.Pix, "producer copy untouched")

	data, err := store.Get(context.Background(), "cons-0-x.png")
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1, decoded.Bounds().Dx())

	stats := shared.Tasks.Consumers()[0]
	assert.Equal(t, 1, stats.Items)
	assert.Equal(t, []string{"invert"}, stats.Operations)
}

func TestConsumer_EncodeFailureResolvesWithError(t *testing.T) {
	shared, q := newTestShared(t, 2, 1, 1)
	store := testutil.NewMemoryStore()

	fut, err := q.Push(testutil.NewImage("bad.png", 2, 2))
	require.NoError(t, err)

	cons, err := NewConsumer(0, shared, failingEncoder{}, store, testConsumerConfig())
	require.NoError(t, err)
	require.NoError(t, cons.Run(context.Background()))

	img, err := fut.AwaitTimeout(time.Second)
	assert.Nil(t, img)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrEncodeFailed)
	assert.False(t, errors.IsTimeout(err))

	assert.Equal(t, 0, store.Len())
	stats := shared.Tasks.Consumers()[0]
	assert.Equal(t, 0, stats.Items)
	assert.Equal(t, 1, stats.Failures)
}

func TestConsumer_RetriesTransientStoreFailure(t *testing.T) {
	shared, q := newTestShared(t, 2, 1, 1)
	store := testutil.NewMemoryStore()
	store.FailPuts = 2

	fut, err := q.Push(testutil.NewImage("retry.png", 2, 2))
	require.NoError(t, err)

	cfg := testConsumerConfig()
	cfg.Retry = errors.RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
	}
	cons, err := NewConsumer(0, shared, codec.New(), store, cfg)
	require.NoError(t, err)
	require.NoError(t, cons.Run(context.Background()))

	_, err = fut.AwaitTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Puts())
	assert.Equal(t, 1, store.Len())
}

func TestConsumer_StoreFailureExhaustsRetries(t *testing.T) {
	shared, q := newTestShared(t, 2, 1, 1)
	store := testutil.NewMemoryStore()
	store.FailPuts = 10

	fut, err := q.Push(testutil.NewImage("down.png", 2, 2))
	require.NoError(t, err)

	cfg := testConsumerConfig()
	cfg.Retry = errors.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
	cons, err := NewConsumer(0, shared, codec.New(), store, cfg)
	require.NoError(t, err)
	require.NoError(t, cons.Run(context.Background()))

	_, err = fut.AwaitTimeout(time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrEncodeFailed)
	assert.ErrorIs(t, err, errors.ErrStorageUnavailable)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, 2, store.Puts())
}

func TestConsumer_WaitsWhileRunning(t *testing.T) {
	shared, q := newTestShared(t, 2, 1, 1)
	shared.Start()

	cons, err := NewConsumer(0, shared, codec.New(), testutil.NewMemoryStore(), testConsumerConfig())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_ = cons.Run(context.Background())
		close(done)
	}()

	// An empty queue alone does not end the consumer
	select {
	case <-done:
		t.Fatal("consumer exited while running")
	case <-time.After(80 * time.Millisecond):
	}

	fut, err := q.Push(testutil.NewImage("late.png", 2, 2))
	require.NoError(t, err)
	_, err = fut.AwaitTimeout(time.Second)
	require.NoError(t, err)

	shared.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not exit after stop")
	}
	assert.Equal(t, 1, shared.Tasks.Consumers()[0].Rank)
}

func TestConsumer_Key(t *testing.T) {
	shared, _ := newTestShared(t, 1, 1, 3)
	cons, err := NewConsumer(2, shared, codec.New(), testutil.NewMemoryStore(), testConsumerConfig())
	require.NoError(t, err)

	assert.Equal(t, "cons-2-photo.JPG", cons.Key(payload.New("/in/photo.JPG", 1, 1, 3)))
	assert.Equal(t, "cons-2-noext", cons.Key(payload.New("noext", 1, 1, 3)))
}
