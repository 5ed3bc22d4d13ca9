// Package pixelflow is a bounded-queue image processing pipeline.
//
// Producers load images from a source and push them into a fixed-capacity
// ring queue. Each push returns a Future that resolves once a consumer has
// transformed and stored the image. Consumers pop items, apply the transform
// chain (grayscale, invert, brightness, contrast) and write the result to a
// storage backend. An optional observer samples queue occupancy while the
// run is active.
//
// # Layout
//
//	pkg/buffer        bounded ring queue guarded by a mutex and two semaphores
//	pkg/future        single-assignment completion handle
//	pkg/worker        named task groups with panic recovery and metrics
//	payload           raw pixel buffers
//	codec             file formats to and from payload.Image
//	transform         per-pixel operations and pipelines
//	source            directory listing and fsnotify watching
//	storage           local filesystem and NATS object store backends
//	pipeline          producer, consumer, observer tasks and the controller
//	config            viper-backed configuration
//	metric            Prometheus registry and HTTP endpoint
//	errors            error classification and sentinels
//	cmd/pixelflow     cobra command line
//
// # Lifecycle
//
// A controller moves through Init, Running, Draining and Stopped. Draining
// begins once every producer has returned. Consumers keep popping until the
// queue is empty, so every pushed item is resolved before the run stops.
package pixelflow
