package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(42).String())
}

func TestClassification(t *testing.T) {
	decodeErr := WrapInvalid(Join(ErrLoadFailed, fmt.Errorf("png: invalid format")), "Codec", "Decode", "decode a.png")

	tests := []struct {
		name      string
		err       error
		transient bool
		fatal     bool
		invalid   bool
		class     ErrorClass
	}{
		{"nil", nil, false, false, false, ErrorTransient},

		// Queue outcomes
		{"pop timed out", ErrTimedOut, true, false, false, ErrorTransient},
		{"allocation failure", ErrAllocationFailed, false, true, false, ErrorFatal},
		{"spawn failure", ErrSpawnFailed, false, true, false, ErrorFatal},

		// Item outcomes
		{"load failure", ErrLoadFailed, false, false, true, ErrorInvalid},
		{"invalid payload", ErrInvalidPayload, false, false, true, ErrorInvalid},
		{"wrapped decode failure", decodeErr, false, false, true, ErrorInvalid},

		// Destination outcomes
		{"storage unavailable", ErrStorageUnavailable, true, false, false, ErrorTransient},
		{"connection lost", ErrConnectionLost, true, false, false, ErrorTransient},
		{"storage full", ErrStorageFull, false, true, false, ErrorFatal},

		{"invalid config", ErrInvalidConfig, false, true, false, ErrorFatal},
		{"context canceled", context.Canceled, true, false, false, ErrorTransient},
		{"timeout in message", fmt.Errorf("dial tcp: i/o timeout"), true, false, false, ErrorTransient},
		{"panic in message", fmt.Errorf("panic: index out of range"), false, true, false, ErrorFatal},
		{"unknown", fmt.Errorf("something odd"), false, false, false, ErrorTransient},

		// Explicit class beats the sentinel
		{"fatal wrapping transient", WrapFatal(ErrStorageUnavailable, "Store", "Put", "write"), false, true, false, ErrorFatal},
		{"transient wrapping encode", WrapTransient(ErrEncodeFailed, "Consumer", "persist", "store"), true, false, false, ErrorTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(tt.err), "IsTransient")
			assert.Equal(t, tt.fatal, IsFatal(tt.err), "IsFatal")
			assert.Equal(t, tt.invalid, IsInvalid(tt.err), "IsInvalid")
			assert.Equal(t, tt.class, Classify(tt.err), "Classify")
		})
	}
}

func TestIsTimeout(t *testing.T) {
	assert.False(t, IsTimeout(nil))
	assert.True(t, IsTimeout(ErrTimedOut))
	assert.True(t, IsTimeout(Wrap(ErrTimedOut, "BoundedQueue", "Pop", "acquire filled slot")))
	assert.False(t, IsTimeout(ErrConnectionTimeout), "connection timeouts are not pop timeouts")
	assert.False(t, IsTimeout(context.DeadlineExceeded))
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "Consumer", "persist", "store"))
	assert.NoError(t, WrapFatal(nil, "Consumer", "persist", "store"))

	cause := fmt.Errorf("disk full")
	err := Wrap(cause, "Consumer", "persist", "store cons-1-a.png")
	assert.EqualError(t, err, "Consumer.persist: store cons-1-a.png failed: disk full")
	assert.ErrorIs(t, err, cause)
}

func TestWrapClassified(t *testing.T) {
	cause := Join(ErrEncodeFailed, fmt.Errorf("jpeg: bad quality"))

	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap(cause, "Codec", "Encode", "jpeg")

			var ce *ClassifiedError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.class, ce.Class)
			assert.Equal(t, "Codec", ce.Component)
			assert.Equal(t, "Encode", ce.Operation)
			assert.Contains(t, err.Error(), "Codec.Encode: jpeg failed")
			assert.ErrorIs(t, err, ErrEncodeFailed)
		})
	}
}

func TestClassifiedError_Message(t *testing.T) {
	base := fmt.Errorf("base")
	assert.Equal(t, "custom", newClassified(ErrorFatal, base, "c", "op", "custom").Error())
	assert.Equal(t, "base", newClassified(ErrorFatal, base, "c", "op", "").Error())
}

func TestJoin(t *testing.T) {
	cause := fmt.Errorf("png: invalid format")
	err := Join(ErrLoadFailed, cause)

	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.ErrorIs(t, err, cause)
	assert.Same(t, ErrLoadFailed, Join(ErrLoadFailed, nil))
}

func TestRetryConfig_ShouldRetry(t *testing.T) {
	rc := DefaultRetryConfig()

	assert.False(t, rc.ShouldRetry(nil, 0))
	assert.True(t, rc.ShouldRetry(ErrStorageUnavailable, 0))
	assert.True(t, rc.ShouldRetry(fmt.Errorf("nats: connection closed"), 2))
	assert.False(t, rc.ShouldRetry(ErrStorageUnavailable, rc.MaxRetries), "budget spent")
	assert.False(t, rc.ShouldRetry(ErrInvalidData, 0))
	assert.False(t, rc.ShouldRetry(ErrStorageFull, 0))

	rc.RetryableErrors = []error{ErrConnectionLost}
	assert.True(t, rc.ShouldRetry(ErrConnectionLost, 0))
	assert.False(t, rc.ShouldRetry(ErrStorageUnavailable, 0), "not in the allow list")
}

func TestRetryConfig_BackoffDelay(t *testing.T) {
	rc := RetryConfig{
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      300 * time.Millisecond,
		BackoffFactor: 2,
	}

	want := []time.Duration{
		50 * time.Millisecond,
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
		300 * time.Millisecond,
	}
	for attempt, d := range want {
		assert.Equal(t, d, rc.BackoffDelay(attempt), "attempt %d", attempt)
	}
}

func TestRetryConfig_Retry(t *testing.T) {
	rc := RetryConfig{
		MaxRetries:    2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
	}

	t.Run("recovers from transient failures", func(t *testing.T) {
		calls := 0
		err := rc.Retry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return ErrStorageUnavailable
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after the budget", func(t *testing.T) {
		calls := 0
		err := rc.Retry(context.Background(), func() error {
			calls++
			return ErrConnectionLost
		})
		assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
		assert.ErrorIs(t, err, ErrConnectionLost)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry invalid errors", func(t *testing.T) {
		calls := 0
		err := rc.Retry(context.Background(), func() error {
			calls++
			return ErrKeyNotFound
		})
		assert.ErrorIs(t, err, ErrKeyNotFound)
		assert.NotErrorIs(t, err, ErrMaxRetriesExceeded)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops when the context ends", func(t *testing.T) {
		slow := rc
		slow.InitialDelay = time.Hour
		slow.MaxDelay = time.Hour

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := slow.Retry(ctx, func() error { return ErrStorageUnavailable })
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, ErrStorageUnavailable)
	})
}

func BenchmarkClassify(b *testing.B) {
	err := WrapInvalid(Join(ErrLoadFailed, fmt.Errorf("eof")), "Codec", "Decode", "decode")
	for i := 0; i < b.N; i++ {
		Classify(err)
	}
}

func BenchmarkWrap(b *testing.B) {
	err := fmt.Errorf("base error")
	for i := 0; i < b.N; i++ {
		_ = Wrap(err, "Consumer", "persist", "store")
	}
}
