// Package metric provides Prometheus metrics for pixelflow.
//
// A MetricsRegistry wraps a private prometheus.Registry. On creation it
// registers the core pipeline metrics (controller state, items loaded and
// processed, processing duration, errors, future resolutions, store writes)
// plus the Go runtime and process collectors.
//
// Components register their own collectors through the MetricsRegistrar
// interface. Each registration is keyed by "component.metric". A repeated key
// or a Prometheus name clash returns an Invalid classified error:
//
//	reg := metric.NewMetricsRegistry()
//	q, err := buffer.New(10, buffer.WithMetrics(reg, "queue"))
//
// Server exposes the registry over HTTP on the configured path together with
// a /health endpoint:
//
//	srv := metric.NewServer(9090, "/metrics", reg)
//	go srv.Start()
//	defer srv.Stop(ctx)
//
// All core metric names use the "pixelflow" namespace, for example
// pixelflow_pipeline_state and pixelflow_consumer_items_processed_total.
package metric
