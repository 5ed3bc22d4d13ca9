package pipeline

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/c360/pixelflow/codec"
	"github.com/c360/pixelflow/errors"
	"github.com/c360/pixelflow/payload"
	"github.com/c360/pixelflow/pkg/buffer"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestShared(t *testing.T, capacity, producers, consumers int) (*Shared, *buffer.BoundedQueue) {
	t.Helper()
	q, err := buffer.New(capacity, buffer.WithLogger(quietLogger()))
	require.NoError(t, err)
	return NewShared(q, NewTaskTable(producers, consumers), nil, quietLogger()), q
}

type failingEncoder struct{}

func (failingEncoder) Encode(io.Writer, *payload.Image, codec.Format) error {
	return errors.WrapInvalid(errors.ErrEncodeFailed, "failingEncoder", "Encode", "encode")
}

// recordingReporter keeps everything the observer hands it.
type recordingReporter struct {
	mu       sync.Mutex
	samples  []buffer.Snapshot
	resolved []buffer.SlotView
}

func (r *recordingReporter) Report(snap buffer.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, snap)
}

func (r *recordingReporter) Resolved(item buffer.SlotView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = append(r.resolved, item)
}

func (r *recordingReporter) counts() (samples, resolved int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples), len(r.resolved)
}

func newBufferLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
