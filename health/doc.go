// Package health tracks the state of pipeline parts with a three-level model
// and serves the aggregate over HTTP.
//
// # Health States
//
//   - Healthy: the part is operating normally
//   - Degraded: the part works but is winding down or partly failing
//   - Unhealthy: the part has failed
//
// The controller reports its lifecycle under "pipeline": Init and Running
// are healthy, Draining is degraded, and Stopped is healthy unless a task
// group returned an error. Each task group reports under its own name.
//
// # Basic Usage
//
//	monitor := health.NewMonitor()
//	monitor.UpdateHealthy("pipeline", "running")
//	monitor.Update("consumers", health.FromError("consumers", err))
//
//	status := monitor.Aggregate("pixelflow")
//	if status.IsUnhealthy() {
//		// alert
//	}
//
// Handler exposes the same aggregate as JSON, answering 503 when unhealthy.
//
// # Sanitization
//
// FromError passes error text through Sanitize, which masks URLs, file
// paths, IP addresses, ports and credential assignments.
package health
