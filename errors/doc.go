// Package errors provides standardized error handling patterns for pixelflow components.
//
// # Overview
//
// The errors package implements a three-class error classification system: Transient
// (temporary, retryable), Invalid (bad input, skip it), and Fatal (unrecoverable,
// abort startup). Pipeline tasks use the classification to decide whether a failure
// is contained at the task level or prevents the run from entering the Running state.
//
// # Pipeline Taxonomy
//
// The pipeline's failure modes map onto sentinels and classes as follows:
//
//   - ErrAllocationFailed: the queue could not be built. Fatal, aborts startup.
//   - ErrSpawnFailed: a task could not be constructed. Fatal, aborts startup.
//   - ErrLoadFailed: a producer could not decode an item. Invalid, the item is skipped.
//   - ErrEncodeFailed: a consumer could not encode or store a result. The item's
//     future is still resolved, carrying this error.
//   - ErrTimedOut: a bounded pop expired. Not a failure; use IsTimeout.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Consumer", "persist", "store put")
//	errors.WrapInvalid(err, "Producer", "load", "decode")
//	errors.WrapFatal(err, "Controller", "Run", "allocate queue")
//
// Join attaches a sentinel to an underlying cause so both remain visible to
// errors.Is:
//
//	return errors.WrapInvalid(errors.Join(errors.ErrLoadFailed, err), "PNGCodec", "Decode", "decode image")
//
// # Retry Configuration
//
// RetryConfig drives exponential backoff for transient failures. Consumers use it
// around destination writes:
//
//	cfg := errors.DefaultRetryConfig()
//	err := cfg.Retry(ctx, func() error {
//	    return store.Put(ctx, key, data)
//	})
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error variables are
// immutable and safe for concurrent access.
package errors
