// Package objectstore stores pipeline outputs in a NATS JetStream ObjectStore
// bucket.
//
// Store implements storage.Store. Put writes the encoded bytes as an object
// named by the storage key, replacing any previous version. Get returns the
// latest version. List returns live object names with a given prefix, sorted.
// Delete marks the object deleted and is idempotent.
//
// Dial connects to Config.URL and owns the connection; NewStore reuses an
// existing *nats.Conn. Either creates the bucket when it does not exist.
//
//	store, err := objectstore.Dial(ctx, objectstore.Config{
//	    URL:    "nats://localhost:4222",
//	    Bucket: "PIXELFLOW_OUTPUT",
//	}, objectstore.WithMetrics(registry))
//
// Connection and server failures are returned wrapped as transient with
// ErrStorageUnavailable, so consumers retry them with errors.RetryConfig.
//
// WithMetrics exports per-operation counters, latency histograms and written
// bytes under the pixelflow_objectstore_ prefix, labelled by bucket.
package objectstore
